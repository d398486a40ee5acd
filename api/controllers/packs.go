package controllers

import (
	"net/http"

	"github.com/angelmondragon/creditpacks-backend/api/responses"
	"github.com/angelmondragon/creditpacks-backend/internal/packs"
)

// PublicPacks lists the purchasable credit packs.
func PublicPacks(catalog *packs.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteSuccess(w, []packs.Pack{})
			return
		}
		responses.WriteSuccess(w, catalog.All())
	}
}

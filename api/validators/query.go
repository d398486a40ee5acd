package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/creditpacks-backend/pkg/errors"
)

// IntParam is an optional integer query parameter with inclusive bounds.
type IntParam struct {
	Name     string
	Default  int
	Min, Max int
}

func (p IntParam) Parse(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(p.Name))
	if raw == "" {
		return p.Default, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "query parameter must be an integer").
			WithDetails(map[string]string{p.Name: "must be an integer"})
	}
	if value < p.Min || value > p.Max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{p.Name: "out of range", "min": p.Min, "max": p.Max})
	}
	return value, nil
}

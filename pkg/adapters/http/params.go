package http

import (
	"errors"
	"net/http"

	"github.com/aretw0/warden/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// pathParam binds a required simple-style path parameter.
func pathParam(r *http.Request, name string) (string, error) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", errors.Join(domain.ErrInvalidRequest, err)
	}
	return v, nil
}

// pathParams binds several path parameters in order, stopping at the first failure.
func pathParams(r *http.Request, names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		v, err := pathParam(r, name)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// waitParam binds the optional form-style wait query parameter.
func waitParam(r *http.Request) (bool, error) {
	var wait bool
	if err := runtime.BindQueryParameter("form", true, false, "wait", r.URL.Query(), &wait); err != nil {
		return false, errors.Join(domain.ErrInvalidRequest, err)
	}
	return wait, nil
}

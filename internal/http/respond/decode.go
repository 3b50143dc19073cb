package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DecodeJSON reads a single JSON object from the request body into v.
// Unknown fields and trailing data are rejected.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body too large", ErrBadRequest)
		default:
			return fmt.Errorf("%w: invalid json: %v", ErrBadRequest, err)
		}
	}

	if dec.More() {
		return fmt.Errorf("%w: unexpected data after json object", ErrBadRequest)
	}

	return nil
}

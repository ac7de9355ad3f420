package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/vango-dev/uireg/internal/errors"
)

// maxBodySize bounds JSON request bodies. Component sources are the
// largest payloads.
const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes err as a JSON payload. Errors without a code are
// reported as internal errors without their message.
func writeError(w http.ResponseWriter, err error) {
	re, ok := errors.As(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errors.Payload{
			Message: "Internal server error",
		})
		return
	}
	writeJSON(w, errors.HTTPStatus(re), re.Payload())
}

// decodeJSON reads a JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.New("E309").WithDetail("The request body is empty")
		}
		return errors.New("E309").WithDetail(err.Error())
	}
	return nil
}

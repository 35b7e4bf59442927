package httpx

import "net/http"

// WriteSuccess writes {success:true, message?, ...fields}.
func WriteSuccess(w http.ResponseWriter, status int, message string, fields map[string]any) {
	if status == 0 {
		status = http.StatusOK
	}
	payload := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		payload[k] = v
	}
	payload["success"] = true
	if message != "" {
		payload["message"] = message
	}
	writeJSON(w, status, payload)
}

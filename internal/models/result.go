package models

import "encoding/json"

// Result is a two-variant query outcome: either the backend payload or a
// failure message, never both. It marshals to the payload itself on success
// and to {"error": message} on failure so callers can always distinguish
// "no data" (empty payload) from "query failed".
type Result[T any] struct {
	Data T
	Err  string
}

// Ok wraps a successful payload.
func Ok[T any](data T) Result[T] {
	return Result[T]{Data: data}
}

// Fail wraps a failure. A nil error yields an unspecified-failure message.
func Fail[T any](err error) Result[T] {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result[T]{Err: msg}
}

// Failed reports whether the result carries a failure.
func (r Result[T]) Failed() bool {
	return r.Err != ""
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{Error: r.Err})
	}
	return json.Marshal(r.Data)
}

func (r *Result[T]) UnmarshalJSON(data []byte) error {
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.Error != "" {
		r.Err = probe.Error
		return nil
	}
	return json.Unmarshal(data, &r.Data)
}

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/regionpulse/regionpulse/pkg/types"
	"github.com/regionpulse/regionpulse/server/internal/compute"
)

// MaxRequestBytes caps the size of a latency request body.
const MaxRequestBytes = 1 << 20

var (
	// ErrNotReady is returned while the dataset is still loading.
	ErrNotReady = errors.New("dataset loading")

	// ErrMalformedInput wraps every request validation failure.
	ErrMalformedInput = errors.New("malformed input")
)

// wireRequest mirrors types.LatencyRequest with pointer elements so null
// region entries can be told apart from valid names.
type wireRequest struct {
	Regions     []*string `json:"regions"`
	ThresholdMs *float64  `json:"threshold_ms"`
}

// DecodeLatencyRequest parses and validates one latency request document.
// Every failure wraps ErrMalformedInput.
func DecodeLatencyRequest(r io.Reader) (types.LatencyRequest, error) {
	dec := json.NewDecoder(io.LimitReader(r, MaxRequestBytes+1))
	dec.DisallowUnknownFields()

	var wire wireRequest
	if err := dec.Decode(&wire); err != nil {
		return types.LatencyRequest{}, malformed(decodeReason(err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return types.LatencyRequest{}, malformed("unexpected data after request body")
	}

	if wire.Regions == nil {
		return types.LatencyRequest{}, malformed("regions is required")
	}
	req := types.LatencyRequest{
		Regions:     make([]string, len(wire.Regions)),
		ThresholdMs: wire.ThresholdMs,
	}
	for i, name := range wire.Regions {
		if name == nil {
			return types.LatencyRequest{}, malformed(fmt.Sprintf("regions[%d] is null", i))
		}
		if *name == "" {
			return types.LatencyRequest{}, malformed(fmt.Sprintf("regions[%d] is empty", i))
		}
		req.Regions[i] = *name
	}
	if t := req.ThresholdMs; t != nil && (math.IsNaN(*t) || math.IsInf(*t, 0)) {
		return types.LatencyRequest{}, malformed("threshold_ms must be finite")
	}
	return req, nil
}

// DecodeLatencyRequestBytes is DecodeLatencyRequest over an in-memory frame.
func DecodeLatencyRequestBytes(b []byte) (types.LatencyRequest, error) {
	if len(b) > MaxRequestBytes {
		return types.LatencyRequest{}, malformed("request body too large")
	}
	return DecodeLatencyRequest(bytes.NewReader(b))
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, reason)
}

func decodeReason(err error) string {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var sizeErr *http.MaxBytesError
	switch {
	case errors.As(err, &sizeErr):
		return "request body too large"
	case errors.Is(err, io.EOF):
		return "request body is empty"
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "request body is truncated or too large"
	case errors.As(err, &typeErr):
		if typeErr.Field != "" {
			return fmt.Sprintf("%s has the wrong type", typeErr.Field)
		}
		return "request body must be a JSON object"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("invalid JSON at offset %d", syntaxErr.Offset)
	default:
		// Covers "json: unknown field" and out-of-range numbers.
		return err.Error()
	}
}

// Query answers a latency request against the currently loaded dataset.
//
// It returns ErrNotReady before the dataset is set and
// compute.ErrDatasetUnavailable when the loaded dataset is empty. Unknown
// regions are zero-filled and duplicates repeated, in request order.
func (h *Handler) Query(req types.LatencyRequest) (types.LatencyResponse, error) {
	st := h.store.Load()
	if st == nil {
		return types.LatencyResponse{}, ErrNotReady
	}
	if req.Regions == nil {
		return types.LatencyResponse{}, malformed("regions is required")
	}

	threshold := h.DefaultThreshold()
	if req.ThresholdMs != nil {
		threshold = *req.ThresholdMs
	}

	out, err := compute.NewAggregator(st).ComputeBatch(req.Regions, threshold)
	if err != nil {
		return types.LatencyResponse{}, err
	}
	for _, region := range req.Regions {
		h.opts.Metrics.ObserveLookup(st.HasRegion(region))
	}
	return types.LatencyResponse{Regions: out}, nil
}

package forester

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightprotocol/forester-go/txerrors"
	"github.com/stretchr/testify/require"
)

func TestRPCProverSynchronousProve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/prove", r.URL.Path)

		var req ProveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, CircuitAppend, req.CircuitType)
		require.NotEmpty(t, req.Inputs)

		json.NewEncoder(w).Encode(ProveResponse{A: []byte{1}, B: []byte{2}, C: []byte{3}})
	}))
	defer srv.Close()

	p := NewRPCProver(srv.URL, 10*time.Millisecond, time.Second)
	proof, err := p.Prove(context.Background(), ProveRequest{CircuitType: CircuitAppend, Inputs: []byte("{}")})
	require.NoError(t, err)
	require.Equal(t, []byte{1}, proof.A)
}

func TestRPCProverPollsAsynchronousJob(t *testing.T) {
	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/prove":
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(proveJob{JobID: "job-7"})
		case r.Method == http.MethodGet && r.URL.Path == "/prove/job-7":
			if polls.Add(1) < 3 {
				w.WriteHeader(http.StatusAccepted)
				return
			}
			json.NewEncoder(w).Encode(ProveResponse{A: []byte{9}})
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	p := NewRPCProver(srv.URL, 5*time.Millisecond, time.Second)
	proof, err := p.Prove(context.Background(), ProveRequest{CircuitType: CircuitUpdate})
	require.NoError(t, err)
	require.Equal(t, []byte{9}, proof.A)
	require.GreaterOrEqual(t, polls.Load(), int64(3))
}

func TestRPCProverTimesOutAsProverTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(proveJob{JobID: "slow"})
	}))
	defer srv.Close()

	p := NewRPCProver(srv.URL, 5*time.Millisecond, 25*time.Millisecond)
	_, err := p.Prove(context.Background(), ProveRequest{CircuitType: CircuitAppend})
	require.ErrorIs(t, err, txerrors.ErrProverTimeout)
}

func TestRPCProverSurfacesProverError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "constraint system unsatisfied", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewRPCProver(srv.URL, 5*time.Millisecond, time.Second)
	_, err := p.Prove(context.Background(), ProveRequest{CircuitType: CircuitAppend})
	var proverErr *txerrors.ProverError
	require.ErrorAs(t, err, &proverErr)
}

// Package forester implements the off-chain background worker: it drains
// output/input queues, dispatches bounded-parallel proof requests with
// sequential changelog accumulation, and submits the results.
package forester

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lightprotocol/forester-go/txerrors"
	"github.com/rs/zerolog/log"
)

// CircuitType selects which circuit the prover should run: append (new
// leaves into the tree) or update (nullify existing leaves).
type CircuitType string

const (
	CircuitAppend CircuitType = "append"
	CircuitUpdate CircuitType = "update"
)

// ProveRequest is the body of POST /prove.
type ProveRequest struct {
	CircuitType     CircuitType `json:"circuit_type"`
	PublicInputHash [32]byte    `json:"public_input_hash"`
	Inputs          []byte      `json:"inputs"`
}

// ProveResponse is a Groth16 proof in its three-point form.
type ProveResponse struct {
	A []byte `json:"a"`
	B []byte `json:"b"`
	C []byte `json:"c"`
}

// circuitInputs is the witness payload embedded in a ProveRequest: the
// public values the circuit binds the proof to, hex-encoded.
type circuitInputs struct {
	OldRoot    string `json:"old_root"`
	NewRoot    string `json:"new_root"`
	StartIndex uint64 `json:"start_index"`
	HashChain  string `json:"leaves_hash_chain"`
}

func encodeCircuitInputs(b BatchInputs, newRoot [32]byte) []byte {
	payload, _ := json.Marshal(circuitInputs{
		OldRoot:    hex.EncodeToString(b.OldRoot[:]),
		NewRoot:    hex.EncodeToString(newRoot[:]),
		StartIndex: b.StartIndex,
		HashChain:  hex.EncodeToString(b.HashChain[:]),
	})
	return payload
}

// Prover abstracts the Groth16 prover network as an RPC endpoint, the same
// way Fetcher abstracts the beacon API in the teacher's provers package —
// the forester pipeline never talks to a prover implementation directly.
type Prover interface {
	Prove(ctx context.Context, req ProveRequest) (*ProveResponse, error)
}

// proveJob is the prover's 202 Accepted body for a proof it will finish
// asynchronously; the client polls /prove/{job_id} until the proof is done.
type proveJob struct {
	JobID string `json:"job_id"`
}

// RPCProver calls a prover service over HTTP. A prover may answer a prove
// request synchronously (200 with the proof) or hand back a job to poll
// (202 with a job id); either way the total wall time is bounded by
// MaxWaitTime, after which the request fails with ProverTimeout.
type RPCProver struct {
	BaseURL         string
	Client          *http.Client
	PollingInterval time.Duration
	MaxWaitTime     time.Duration
}

// NewRPCProver builds an RPCProver with the given base URL and timing
// parameters.
func NewRPCProver(baseURL string, pollingInterval, maxWaitTime time.Duration) *RPCProver {
	return &RPCProver{
		BaseURL:         baseURL,
		Client:          &http.Client{},
		PollingInterval: pollingInterval,
		MaxWaitTime:     maxWaitTime,
	}
}

// Prove posts req to /prove and waits for a proof, polling the returned job
// when the prover answers asynchronously, honoring ctx cancellation and
// MaxWaitTime.
func (p *RPCProver) Prove(ctx context.Context, req ProveRequest) (*ProveResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.MaxWaitTime)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("forester: marshaling prove request: %w", err)
	}

	log.Debug().Str("circuit_type", string(req.CircuitType)).Msg("dispatching prove request")

	status, respBody, err := p.do(ctx, http.MethodPost, p.BaseURL+"/prove", body)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		return parseProof(respBody)
	case http.StatusAccepted:
		var job proveJob
		if err := json.Unmarshal(respBody, &job); err != nil {
			return nil, fmt.Errorf("forester: parsing prove job: %w", err)
		}
		return p.poll(ctx, job.JobID)
	default:
		return nil, &txerrors.ProverError{Message: fmt.Sprintf("status %d: %s", status, string(respBody))}
	}
}

// poll fetches /prove/{jobID} every PollingInterval until the prover
// reports the proof done, the deadline passes, or ctx is canceled.
func (p *RPCProver) poll(ctx context.Context, jobID string) (*ProveResponse, error) {
	ticker := time.NewTicker(p.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("forester: %w", txerrors.ErrProverTimeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
			status, respBody, err := p.do(ctx, http.MethodGet, p.BaseURL+"/prove/"+jobID, nil)
			if err != nil {
				return nil, err
			}
			switch status {
			case http.StatusOK:
				return parseProof(respBody)
			case http.StatusAccepted:
				// Still proving.
			default:
				return nil, &txerrors.ProverError{Message: fmt.Sprintf("status %d: %s", status, string(respBody))}
			}
		}
	}
}

func (p *RPCProver) do(ctx context.Context, method, url string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("forester: building prove request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, nil, fmt.Errorf("forester: %w", txerrors.ErrProverTimeout)
		}
		return 0, nil, fmt.Errorf("forester: prove request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("forester: reading prove response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func parseProof(body []byte) (*ProveResponse, error) {
	var out ProveResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("forester: parsing prove response: %w", err)
	}
	return &out, nil
}

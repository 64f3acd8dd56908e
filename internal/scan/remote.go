package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"logscan/pkg/auth"
	"logscan/pkg/errs"
)

const component = "scan"

// RemoteScanRequest is the wire body posted to a peer's
// /api/v1/logfiles/scan_partition endpoint. It carries the full
// LogfileScanParams the coordinator resolved for the overall scan --
// Namespace, EndTime, Columns and ReturnRaw included -- so the peer
// scopes its lookup to the same customer and builds the exact same
// ordered projection a local dispatch would.
type RemoteScanRequest struct {
	Namespace     string            `json:"namespace"`
	Table         string            `json:"table"`
	WindowStart   time.Time         `json:"window_start"`
	PartitionSize time.Duration     `json:"partition_size"`
	SQLFilter     string            `json:"sql_filter,omitempty"`
	FieldIDs      map[string]uint32 `json:"field_ids,omitempty"`
	EndTime       time.Time         `json:"end_time"`
	Columns       []string          `json:"columns,omitempty"`
	ReturnRaw     bool              `json:"return_raw,omitempty"`
	Limit         int               `json:"limit"`
}

// RemoteScanResponse is the wire body a peer returns for a partition scan.
type RemoteScanResponse struct {
	Lines       []Line `json:"lines"`
	RowsScanned int    `json:"rows_scanned"`
}

// RemoteAdapter dispatches a partition scan to the peer(s) that own it
// over HTTP, implementing the replica failover state machine: the first
// 200 wins and merges its rows in; a 404 means the partition is simply
// empty on that replica and the scan for this partition is done (no
// fallthrough to the next host); any other status or a transport error
// is recorded and the next host is tried; if every host fails the
// failures are aggregated into a single Runtime error.
type RemoteAdapter struct {
	client *http.Client
	log    *logrus.Logger
	token  string
}

func NewRemoteAdapter(client *http.Client, log *logrus.Logger) *RemoteAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RemoteAdapter{client: client, log: log}
}

// WithAuth attaches a signer so every outgoing request carries an
// "Authorization: Token <signed_session>" header; the token is signed
// once here since a RemoteAdapter acts under a single service identity,
// not a per-request customer session.
func (a *RemoteAdapter) WithAuth(signer *auth.Signer, session auth.Session) *RemoteAdapter {
	if signer != nil {
		if token, err := signer.EncodeToken(session); err == nil {
			a.token = token
		}
	}
	return a
}

// Scan tries hosts in order per the replica-failover state machine and
// also reports how many hosts it actually contacted, so callers can
// distinguish a first-try success from a failover.
func (a *RemoteAdapter) Scan(ctx context.Context, hosts []string, req RemoteScanRequest) (int, RemoteScanResponse, error) {
	var failures []string

	for i, host := range hosts {
		tried := i + 1
		resp, err := a.doRequest(ctx, host, req)
		if err != nil {
			a.log.WithError(err).WithField("host", host).Warn("remote scan request failed, trying next host")
			failures = append(failures, fmt.Sprintf("%s: %v", host, err))
			continue
		}

		switch resp.status {
		case http.StatusOK:
			return tried, resp.body, nil
		case http.StatusNotFound:
			return tried, RemoteScanResponse{}, nil
		default:
			failures = append(failures, fmt.Sprintf("%s: status %d", host, resp.status))
		}
	}

	return len(hosts), RemoteScanResponse{}, errs.Aggregate(component, "Scan", failures)
}

type remoteResponse struct {
	status int
	body   RemoteScanResponse
}

func (a *RemoteAdapter) doRequest(ctx context.Context, host string, req RemoteScanRequest) (remoteResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return remoteResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+host+"/api/v1/logfiles/scan_partition", bytes.NewReader(payload))
	if err != nil {
		return remoteResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		httpReq.Header.Set("Authorization", "Token "+a.token)
	}

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return remoteResponse{}, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return remoteResponse{status: httpResp.StatusCode}, nil
	}

	var body RemoteScanResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&body); err != nil {
		return remoteResponse{}, err
	}
	return remoteResponse{status: httpResp.StatusCode, body: body}, nil
}

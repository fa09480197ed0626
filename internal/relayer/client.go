package relayer

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	noncePath  = "/nonce"
	submitPath = "/submit"
	safeType   = "SAFE"
)

// Client executes calls from one proxy wallet through the builder relayer.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	key         *ecdsa.PrivateKey
	signer      common.Address
	proxy       common.Address
	chainID     *big.Int
	multiSend   common.Address
	credentials BuilderCredentials
	secret      []byte
	now         func() time.Time
	logger      *zap.Logger
}

// Config holds relayer client configuration.
type Config struct {
	BaseURL      string
	ChainID      int64
	PrivateKey   *ecdsa.PrivateKey
	ProxyAddress common.Address
	MultiSend    common.Address
	Credentials  BuilderCredentials
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// NewClient creates a relayer client for one wallet.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	if cfg.PrivateKey == nil {
		return nil, errors.New("private key cannot be nil")
	}
	if cfg.ProxyAddress == (common.Address{}) {
		return nil, errors.New("proxy address cannot be empty")
	}
	if !cfg.Credentials.Valid() {
		return nil, ErrMissingCredentials
	}
	secret, err := cfg.Credentials.decodeSecret()
	if err != nil {
		return nil, fmt.Errorf("decode builder secret: %w", err)
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  httpClient,
		key:         cfg.PrivateKey,
		signer:      crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey),
		proxy:       cfg.ProxyAddress,
		chainID:     big.NewInt(cfg.ChainID),
		multiSend:   cfg.MultiSend,
		credentials: cfg.Credentials,
		secret:      secret,
		now:         time.Now,
		logger:      cfg.Logger,
	}, nil
}

// Signer returns the EOA that signs for the proxy wallet.
func (c *Client) Signer() common.Address {
	return c.signer
}

// Proxy returns the proxy wallet the calls execute from.
func (c *Client) Proxy() common.Address {
	return c.proxy
}

// SubmitResponse is the relayer's answer to a submission.
type SubmitResponse struct {
	TransactionID   string `json:"transactionID"`
	TransactionHash string `json:"transactionHash"`
	State           string `json:"state"`
}

type signatureParams struct {
	GasPrice       string `json:"gasPrice"`
	Operation      string `json:"operation"`
	SafeTxnGas     string `json:"safeTxnGas"`
	BaseGas        string `json:"baseGas"`
	GasToken       string `json:"gasToken"`
	RefundReceiver string `json:"refundReceiver"`
}

type submitRequest struct {
	From            string          `json:"from"`
	To              string          `json:"to"`
	ProxyWallet     string          `json:"proxyWallet"`
	Data            string          `json:"data"`
	Nonce           string          `json:"nonce"`
	Signature       string          `json:"signature"`
	SignatureParams signatureParams `json:"signatureParams"`
	Type            string          `json:"type"`
	Metadata        string          `json:"metadata"`
}

// Execute signs calls as one Safe transaction and submits it.
// It returns the on-chain transaction hash reported by the relayer.
func (c *Client) Execute(ctx context.Context, calls []Call) (txHash string, err error) {
	start := time.Now()
	defer func() {
		SubmitDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			SubmitErrorsTotal.Inc()
		} else {
			SubmissionsTotal.Inc()
		}
	}()

	call, err := aggregate(calls, c.multiSend)
	if err != nil {
		return "", err
	}

	nonce, err := c.Nonce(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}

	hash, err := SafeTxHash(c.chainID, c.proxy, call, nonce)
	if err != nil {
		return "", err
	}

	sig, err := SignSafeHash(hash, c.key)
	if err != nil {
		return "", err
	}

	zero := common.Address{}.Hex()
	req := submitRequest{
		From:        c.signer.Hex(),
		To:          call.To.Hex(),
		ProxyWallet: c.proxy.Hex(),
		Data:        "0x" + common.Bytes2Hex(call.Data),
		Nonce:       nonce.String(),
		Signature:   "0x" + common.Bytes2Hex(sig),
		SignatureParams: signatureParams{
			GasPrice:       "0",
			Operation:      fmt.Sprintf("%d", call.Operation),
			SafeTxnGas:     "0",
			BaseGas:        "0",
			GasToken:       zero,
			RefundReceiver: zero,
		},
		Type: safeType,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	var resp SubmitResponse
	err = c.do(ctx, http.MethodPost, submitPath, body, &resp)
	if err != nil {
		return "", err
	}

	if resp.TransactionHash == "" {
		return "", fmt.Errorf("%w (transaction id %q)", ErrNoTransactionHash, resp.TransactionID)
	}

	c.logger.Info("relayer-submitted",
		zap.String("proxy", c.proxy.Hex()),
		zap.String("transaction-id", resp.TransactionID),
		zap.String("tx-hash", resp.TransactionHash),
		zap.String("state", resp.State),
		zap.Int("calls", len(calls)))

	return resp.TransactionHash, nil
}

// Nonce fetches the Safe nonce the relayer expects for the next submission.
func (c *Client) Nonce(ctx context.Context) (*big.Int, error) {
	query := url.Values{}
	query.Set("address", c.signer.Hex())
	query.Set("type", safeType)

	var resp struct {
		Nonce json.RawMessage `json:"nonce"`
	}
	err := c.do(ctx, http.MethodGet, noncePath+"?"+query.Encode(), nil, &resp)
	if err != nil {
		return nil, err
	}

	raw := strings.Trim(strings.TrimSpace(string(resp.Nonce)), `"`)
	nonce, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid nonce %q", raw)
	}
	return nonce, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	// The signed path excludes the query string.
	signedPath := path
	if i := strings.IndexByte(signedPath, '?'); i >= 0 {
		signedPath = signedPath[:i]
	}
	for k, v := range c.credentials.headers(c.secret, method, signedPath, string(body), c.now().Unix()) {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: method, Path: signedPath, Status: resp.StatusCode, Body: string(respBody)}
	}

	err = json.Unmarshal(respBody, out)
	if err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	return nil
}

package ledger

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hyperledger/fabric-gateway/pkg/client"
	"github.com/hyperledger/fabric-gateway/pkg/hash"
	"github.com/hyperledger/fabric-gateway/pkg/identity"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
)

type FabricConfig struct {
	PeerEndpoint     string
	PeerHostOverride string
	TLSCertPath      string
	CertPath         string
	KeyPath          string
	MSPID            string
	Channel          string
	Chaincode        string
	// Contract is the contract name inside the chaincode; empty selects the
	// default contract.
	Contract string
	Timeout  time.Duration
}

// Fabric submits and evaluates transactions through a Fabric Gateway peer.
// It holds one gRPC connection for the life of the process.
type Fabric struct {
	conn     *grpc.ClientConn
	gw       *client.Gateway
	contract *client.Contract
	timeout  time.Duration
}

// NewFabric connects to the configured peer with the configured identity.
func NewFabric(cfg FabricConfig) (*Fabric, error) {
	conn, err := dialPeer(cfg)
	if err != nil {
		return nil, err
	}

	id, sign, err := loadIdentity(cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	gw, err := client.Connect(id,
		client.WithSign(sign),
		client.WithHash(hash.SHA256),
		client.WithClientConnection(conn),
		client.WithEvaluateTimeout(timeout),
		client.WithEndorseTimeout(timeout),
		client.WithSubmitTimeout(timeout),
		client.WithCommitStatusTimeout(2*timeout),
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect fabric gateway: %w", err)
	}

	network := gw.GetNetwork(cfg.Channel)
	var contract *client.Contract
	if cfg.Contract != "" {
		contract = network.GetContractWithName(cfg.Chaincode, cfg.Contract)
	} else {
		contract = network.GetContract(cfg.Chaincode)
	}

	return &Fabric{conn: conn, gw: gw, contract: contract, timeout: timeout}, nil
}

func dialPeer(cfg FabricConfig) (*grpc.ClientConn, error) {
	pem, err := os.ReadFile(cfg.TLSCertPath)
	if err != nil {
		return nil, fmt.Errorf("read peer TLS certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("peer TLS certificate %s contains no certificates", cfg.TLSCertPath)
	}

	conn, err := grpc.NewClient(cfg.PeerEndpoint,
		grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(pool, cfg.PeerHostOverride)))
	if err != nil {
		return nil, fmt.Errorf("create gRPC connection: %w", err)
	}
	return conn, nil
}

func loadIdentity(cfg FabricConfig) (*identity.X509Identity, identity.Sign, error) {
	certPEM, err := os.ReadFile(cfg.CertPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read client certificate: %w", err)
	}
	cert, err := identity.CertificateFromPEM(certPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse client certificate: %w", err)
	}
	id, err := identity.NewX509Identity(cfg.MSPID, cert)
	if err != nil {
		return nil, nil, fmt.Errorf("create identity: %w", err)
	}

	keyPEM, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := identity.PrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}
	sign, err := identity.NewPrivateKeySign(key)
	if err != nil {
		return nil, nil, fmt.Errorf("create signer: %w", err)
	}
	return id, sign, nil
}

func (f *Fabric) Submit(ctx context.Context, op Operation, args ...string) ([]byte, error) {
	if err := checkArgs(op, args); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	result, err := f.contract.SubmitWithContext(ctx, string(op), client.WithArguments(args...))
	if err != nil {
		return nil, classifyFabric(err)
	}
	return result, nil
}

func (f *Fabric) Query(ctx context.Context, op Operation, args ...string) ([]byte, error) {
	if err := checkArgs(op, args); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	result, err := f.contract.EvaluateWithContext(ctx, string(op), client.WithArguments(args...))
	if err != nil {
		return nil, classifyFabric(err)
	}
	return result, nil
}

func (f *Fabric) Close() error {
	f.gw.Close()
	return f.conn.Close()
}

// classifyFabric maps gateway errors onto the ledger error kinds. Transport
// failures and unknown commit outcomes are retryable; endorsement and
// validation failures are the ledger refusing the transaction.
func classifyFabric(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Unavailable(err)
	}

	var commitStatusErr *client.CommitStatusError
	if errors.As(err, &commitStatusErr) {
		return Unavailable(err)
	}
	var commitErr *client.CommitError
	if errors.As(err, &commitErr) {
		return Rejected(fmt.Sprintf("transaction %s failed validation with code %v",
			commitErr.TransactionID, commitErr.Code))
	}

	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Canceled:
		return Unavailable(err)
	}

	var endorseErr *client.EndorseError
	var submitErr *client.SubmitError
	if errors.As(err, &endorseErr) || errors.As(err, &submitErr) {
		return Rejected(rejectionMessage(err))
	}
	return Unavailable(err)
}

// rejectionMessage extracts the chaincode's message from a gRPC status.
func rejectionMessage(err error) string {
	if st, ok := status.FromError(err); ok {
		msg := st.Message()
		for _, d := range st.Details() {
			if m, ok := d.(interface{ GetMessage() string }); ok && m.GetMessage() != "" {
				msg = m.GetMessage()
			}
		}
		return msg
	}
	return err.Error()
}

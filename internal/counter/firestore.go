package counter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Counters live in a single canonical document whose ID equals the collection
// name, one field per invoice type.
const collectionName = "Autoinvoice"

// Store reads and advances per-invoice-type sequence counters.
type Store interface {
	// Value returns the next sequence number for the type; never-issued types
	// read as 0.
	Value(ctx context.Context, invoiceType string) (int64, error)
	// Advance atomically increments the type's counter by 1.
	Advance(ctx context.Context, invoiceType string) error
}

// FirestoreStore is the Firestore-backed Store.
type FirestoreStore struct {
	client *firestore.Client
	log    *zap.Logger
}

// NewFirestoreStore builds the Firestore client from the service-account
// fields supplied via FIREBASE_* environment variables.
func NewFirestoreStore(ctx context.Context, log *zap.Logger) (*FirestoreStore, error) {
	creds, projectID, err := credentialsFromEnv()
	if err != nil {
		return nil, err
	}

	client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &FirestoreStore{client: client, log: log}, nil
}

func (s *FirestoreStore) Value(ctx context.Context, invoiceType string) (int64, error) {
	snap, err := s.client.Collection(collectionName).Doc(collectionName).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter document: %w", err)
	}

	v, err := snap.DataAt(invoiceType)
	if err != nil {
		// Field absent: the type has never been issued.
		return 0, nil
	}

	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("counter field %q holds non-numeric value %T", invoiceType, v)
	}
}

func (s *FirestoreStore) Advance(ctx context.Context, invoiceType string) error {
	// Native atomic increment; merge-set creates the document on first use.
	_, err := s.client.Collection(collectionName).Doc(collectionName).Set(ctx,
		map[string]interface{}{invoiceType: firestore.Increment(1)},
		firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to advance counter for %q: %w", invoiceType, err)
	}

	s.log.Info("advanced invoice counter", zap.String("type", invoiceType))
	return nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type serviceAccount struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `json:"client_x509_cert_url"`
	UniverseDomain          string `json:"universe_domain"`
}

// credentialsFromEnv assembles service-account JSON from FIREBASE_*
// environment variables. Escaped newlines in the private key are restored.
func credentialsFromEnv() ([]byte, string, error) {
	sa := serviceAccount{
		Type:                    os.Getenv("FIREBASE_TYPE"),
		ProjectID:               os.Getenv("FIREBASE_PROJECT_ID"),
		PrivateKeyID:            os.Getenv("FIREBASE_PRIVATE_KEY_ID"),
		PrivateKey:              strings.ReplaceAll(os.Getenv("FIREBASE_PRIVATE_KEY"), `\n`, "\n"),
		ClientEmail:             os.Getenv("FIREBASE_CLIENT_EMAIL"),
		ClientID:                os.Getenv("FIREBASE_CLIENT_ID"),
		AuthURI:                 os.Getenv("FIREBASE_AUTH_URI"),
		TokenURI:                os.Getenv("FIREBASE_TOKEN_URI"),
		AuthProviderX509CertURL: os.Getenv("FIREBASE_AUTH_PROVIDER_X509_CERT_URL"),
		ClientX509CertURL:       os.Getenv("FIREBASE_CLIENT_X509_CERT_URL"),
		UniverseDomain:          os.Getenv("FIREBASE_UNIVERSE_DOMAIN"),
	}

	if sa.ProjectID == "" {
		return nil, "", fmt.Errorf("FIREBASE_PROJECT_ID environment variable is required")
	}
	if sa.PrivateKey == "" {
		return nil, "", fmt.Errorf("FIREBASE_PRIVATE_KEY environment variable is required")
	}
	if sa.ClientEmail == "" {
		return nil, "", fmt.Errorf("FIREBASE_CLIENT_EMAIL environment variable is required")
	}
	if sa.Type == "" {
		sa.Type = "service_account"
	}

	data, err := json.Marshal(sa)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal service account: %w", err)
	}

	return data, sa.ProjectID, nil
}

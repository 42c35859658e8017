package typesense

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/cropsight-backend/pkg/config"
	"github.com/zatekoja/cropsight-backend/pkg/retry"
)

const (
	VerdictsCollection = "verdicts"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	// Test connection with retry
	retryConfig := retry.DefaultConfig()
	err := retry.DoWithLog(
		context.Background(),
		retryConfig,
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Printf("Typesense connection attempt %d failed: %v. Retrying in %v...", attempt, err, nextDelay)
		},
	)

	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Println("Successfully connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// InitSchema ensures the verdicts collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == VerdictsCollection {
			log.Println("Typesense collection 'verdicts' already exists")
			return nil
		}
	}

	schema := &api.CollectionSchema{
		Name: VerdictsCollection,
		Fields: []api.Field{
			{
				Name: "id",
				Type: "string",
			},
			{
				Name:  "user_id",
				Type:  "string",
				Facet: pointer.True(),
			},
			{
				Name:  "health_status",
				Type:  "string",
				Facet: pointer.True(),
			},
			{
				Name:  "disease_type",
				Type:  "string",
				Facet: pointer.True(),
			},
			{
				Name:     "soil_status",
				Type:     "string",
				Facet:    pointer.True(),
				Optional: pointer.True(),
			},
			{
				Name:  "overall_health",
				Type:  "string",
				Facet: pointer.True(),
			},
			{
				Name:  "mode",
				Type:  "string",
				Facet: pointer.True(),
			},
			{
				Name: "combined_confidence_score",
				Type: "float",
			},
			{
				Name:     "plant_health_score",
				Type:     "float",
				Optional: pointer.True(),
			},
			{
				Name:     "soil_quality_score",
				Type:     "float",
				Optional: pointer.True(),
			},
			{
				Name:     "recommendations",
				Type:     "string[]",
				Optional: pointer.True(),
			},
			{
				Name:     "soil_issues",
				Type:     "string[]",
				Optional: pointer.True(),
			},
			{
				Name:     "batch_timestamp",
				Type:     "string",
				Facet:    pointer.True(),
				Optional: pointer.True(),
			},
			{
				Name: "has_soil_data",
				Type: "bool",
			},
			{
				Name: "date_predicted",
				Type: "int64",
			},
		},
		DefaultSortingField: pointer.String("date_predicted"),
	}

	_, err = c.client.Collections().Create(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Println("Created Typesense collection 'verdicts'")
	return nil
}

// IndexVerdict indexes a verdict document
func (c *Client) IndexVerdict(ctx context.Context, document map[string]interface{}) error {
	_, err := c.client.Collection(VerdictsCollection).Documents().Upsert(ctx, document)
	return err
}

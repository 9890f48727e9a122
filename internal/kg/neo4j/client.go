// Package neo4j maintains an organization co-occurrence graph built during
// ingestion. Organizations named together in the reference corpus feed the
// partner suggestions on synthesized projects.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/resilience2relief/backend/pkg/circuitbreaker"
	"github.com/resilience2relief/backend/pkg/logger"
	"github.com/resilience2relief/backend/pkg/retry"
)

type Client struct {
	driver      neo4j.DriverWithContext
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(uri, username, password string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri))

	return &Client{
		driver:      driver,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: "neo4j"})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

// RecordCoOccurrence upserts every organization named in one document and
// increments the pairwise co-occurrence weight between them.
func (c *Client) RecordCoOccurrence(ctx context.Context, documentID string, organizations []string) error {
	if len(organizations) == 0 {
		return nil
	}

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			UNWIND $orgs AS name
			MERGE (o:Organization {name: name})
			ON CREATE SET o.created_at = timestamp()
			WITH collect(o) AS orgs
			UNWIND orgs AS a
			UNWIND orgs AS b
			WITH a, b WHERE a.name < b.name
			MERGE (a)-[r:CO_OCCURS]-(b)
			ON CREATE SET r.weight = 0, r.source_docs = []
			SET r.weight = r.weight + 1,
			    r.source_docs = r.source_docs + $doc_id
		`

		_, err := session.Run(ctx, query, map[string]interface{}{
			"orgs":   organizations,
			"doc_id": documentID,
		})
		if err != nil {
			return fmt.Errorf("failed to record co-occurrence: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Debug("Organization co-occurrence recorded",
		zap.String("doc_id", documentID),
		zap.Int("organizations", len(organizations)),
	)

	return nil
}

// RemoveDocument drops a document's contribution to edge weights and
// prunes edges that no longer have support.
func (c *Client) RemoveDocument(ctx context.Context, documentID string) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH ()-[r:CO_OCCURS]-()
			WHERE $doc_id IN r.source_docs
			SET r.weight = r.weight - 1,
			    r.source_docs = [d IN r.source_docs WHERE d <> $doc_id]
			WITH r WHERE r.weight <= 0
			DELETE r
		`

		_, err := session.Run(ctx, query, map[string]interface{}{"doc_id": documentID})
		if err != nil {
			return fmt.Errorf("failed to remove document edges: %w", err)
		}
		return nil
	})
}

// SuggestPartners returns organizations that co-occur most strongly with
// the given ones, excluding the inputs themselves. Ordered by total edge
// weight descending, ties by name for determinism.
func (c *Client) SuggestPartners(ctx context.Context, organizations []string, limit int) ([]string, error) {
	if len(organizations) == 0 || limit <= 0 {
		return nil, nil
	}

	var partners []string
	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (a:Organization)-[r:CO_OCCURS]-(b:Organization)
			WHERE a.name IN $orgs AND NOT b.name IN $orgs
			RETURN b.name AS name, sum(r.weight) AS weight
			ORDER BY weight DESC, name ASC
			LIMIT $limit
		`

		result, err := session.Run(ctx, query, map[string]interface{}{
			"orgs":  organizations,
			"limit": limit,
		})
		if err != nil {
			return fmt.Errorf("failed to query partners: %w", err)
		}

		partners = partners[:0]
		for result.Next(ctx) {
			if name, ok := result.Record().Get("name"); ok {
				if s, ok := name.(string); ok {
					partners = append(partners, s)
				}
			}
		}

		if err := result.Err(); err != nil {
			return fmt.Errorf("error iterating results: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Partner suggestion completed",
		zap.Int("seed_organizations", len(organizations)),
		zap.Int("suggestions", len(partners)),
	)

	return partners, nil
}

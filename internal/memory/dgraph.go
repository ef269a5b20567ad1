package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/dgo/v230"
	"github.com/dgraph-io/dgo/v230/protos/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/genesis/genesis/internal/models"
)

// DgraphVectorStore keeps embeddings as Dgraph nodes. Vectors are stored as
// JSON strings and ranked in process.
type DgraphVectorStore struct {
	client     *dgo.Dgraph
	conn       *grpc.ClientConn
	dimensions int
}

// dgraphEmbedding is the node shape written to and read from Dgraph
type dgraphEmbedding struct {
	UID       string `json:"uid,omitempty"`
	ID        string `json:"embedding.id"`
	UserID    string `json:"embedding.user"`
	BriefID   string `json:"embedding.brief"`
	Vector    string `json:"embedding.vector"`
	Text      string `json:"embedding.text"`
	Kind      string `json:"embedding.kind"`
	Metadata  string `json:"embedding.metadata,omitempty"`
	CreatedAt string `json:"embedding.created"`
	Type      string `json:"dgraph.type,omitempty"`
}

// NewDgraphVectorStore connects to a Dgraph alpha gRPC endpoint and installs the schema
func NewDgraphVectorStore(ctx context.Context, addr string, dimensions int) (*DgraphVectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Dgraph: %w", err)
	}

	s := &DgraphVectorStore{
		client:     dgo.NewDgraphClient(api.NewDgraphClient(conn)),
		conn:       conn,
		dimensions: dimensions,
	}
	if err := s.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *DgraphVectorStore) initSchema(ctx context.Context) error {
	schema := `
		type Embedding {
			embedding.id
			embedding.user
			embedding.brief
			embedding.vector
			embedding.text
			embedding.kind
			embedding.metadata
			embedding.created
		}

		embedding.id: string @index(exact) @upsert .
		embedding.user: string @index(exact) .
		embedding.brief: string @index(exact) .
		embedding.vector: string .
		embedding.text: string @index(fulltext) .
		embedding.kind: string @index(exact) .
		embedding.metadata: string .
		embedding.created: datetime @index(hour) .
	`
	return s.client.Alter(ctx, &api.Operation{Schema: schema})
}

func (s *DgraphVectorStore) Insert(ctx context.Context, e *models.Embedding) error {
	if s.dimensions > 0 && len(e.Vector) != s.dimensions {
		return fmt.Errorf("%w: expected %d dimensions, got %d", ErrInvalidEmbedding, s.dimensions, len(e.Vector))
	}
	node := dgraphEmbedding{
		UID:       "_:e",
		ID:        e.ID,
		UserID:    e.UserID,
		BriefID:   e.BriefID,
		Vector:    formatVector(e.Vector),
		Text:      e.Text,
		Kind:      string(e.Kind),
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
		Type:      "Embedding",
	}
	if len(e.Metadata) > 0 {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		node.Metadata = string(meta)
	}
	payload, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to marshal node: %w", err)
	}

	txn := s.client.NewTxn()
	defer txn.Discard(ctx)

	_, err = txn.Mutate(ctx, &api.Mutation{SetJson: payload, CommitNow: true})
	return err
}

func (s *DgraphVectorStore) Search(ctx context.Context, query []float32, q Query) ([]*models.Embedding, error) {
	fields := `
			embedding.id
			embedding.user
			embedding.brief
			embedding.vector
			embedding.text
			embedding.kind
			embedding.metadata
			embedding.created`

	var (
		dql  string
		vars map[string]string
	)
	if q.UserID != "" {
		dql = `query rows($user: string) {
		rows(func: eq(embedding.user, $user)) @filter(type(Embedding)) {` + fields + `
		}
	}`
		vars = map[string]string{"$user": q.UserID}
	} else {
		dql = `{
		rows(func: type(Embedding)) {` + fields + `
		}
	}`
	}

	txn := s.client.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	var (
		resp *api.Response
		err  error
	)
	if vars != nil {
		resp, err = txn.QueryWithVars(ctx, dql, vars)
	} else {
		resp, err = txn.Query(ctx, dql)
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var result struct {
		Rows []dgraphEmbedding `json:"rows"`
	}
	if err := json.Unmarshal(resp.Json, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := make([]*models.Embedding, 0, len(result.Rows))
	for _, n := range result.Rows {
		e, err := n.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	scoreAll(out, query)
	return out, nil
}

// Delete runs an upsert block that deletes every matching node
func (s *DgraphVectorStore) Delete(ctx context.Context, userID, briefID string) (int64, error) {
	filter := ""
	vars := map[string]string{"$user": userID}
	decl := "$user: string"
	if briefID != "" {
		filter = " @filter(eq(embedding.brief, $brief))"
		vars["$brief"] = briefID
		decl += ", $brief: string"
	}
	dql := fmt.Sprintf(`query rows(%s) {
		rows(func: eq(embedding.user, $user))%s {
			v as uid
		}
	}`, decl, filter)

	txn := s.client.NewTxn()
	defer txn.Discard(ctx)

	resp, err := txn.Do(ctx, &api.Request{
		Query:     dql,
		Vars:      vars,
		Mutations: []*api.Mutation{{DelNquads: []byte(`uid(v) * * .`)}},
		CommitNow: true,
	})
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}

	var result struct {
		Rows []struct {
			UID string `json:"uid"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(resp.Json, &result); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	return int64(len(result.Rows)), nil
}

// Close closes the Dgraph connection
func (s *DgraphVectorStore) Close() error {
	return s.conn.Close()
}

func (n dgraphEmbedding) toModel() (*models.Embedding, error) {
	e := &models.Embedding{
		ID:      n.ID,
		UserID:  n.UserID,
		BriefID: n.BriefID,
		Text:    n.Text,
		Kind:    models.EmbeddingKind(n.Kind),
	}
	if n.Vector != "" {
		vec, err := parseVector(n.Vector)
		if err != nil {
			return nil, err
		}
		e.Vector = vec
	}
	if n.Metadata != "" {
		if err := json.Unmarshal([]byte(n.Metadata), &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, n.CreatedAt); err == nil {
		e.CreatedAt = t
	}
	return e, nil
}

package dbclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"weave/internal/domain"
)

// mongoConnector implements Connector for MongoDB. Queries are JSON
// documents describing a find over one collection.
type mongoConnector struct {
	client *mongo.Client
	dbName string
}

// mongoQuery is the JSON structure users write for MongoDB queries.
type mongoQuery struct {
	Collection string         `json:"collection"`
	Filter     map[string]any `json:"filter,omitempty"`
	Projection map[string]any `json:"projection,omitempty"`
	Sort       map[string]any `json:"sort,omitempty"`
}

func newMongoConnector(conn *domain.DatabaseConnection, password string) (*mongoConnector, error) {
	uri := buildMongoURI(conn, password)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	return &mongoConnector{client: client, dbName: conn.Database}, nil
}

// buildMongoURI accepts either a full connection string in Host (Atlas
// mongodb+srv:// or standard mongodb://) or a plain host:port pair.
func buildMongoURI(conn *domain.DatabaseConnection, password string) string {
	if strings.HasPrefix(conn.Host, "mongodb+srv://") || strings.HasPrefix(conn.Host, "mongodb://") {
		uri := conn.Host
		if password != "" {
			uri = strings.ReplaceAll(uri, "<password>", password)
			uri = strings.ReplaceAll(uri, "<db_password>", password)
		}
		return uri
	}

	port := conn.Port
	if port == 0 {
		port = 27017
	}
	if conn.Username != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", conn.Username, password, conn.Host, port)
	}
	return fmt.Sprintf("mongodb://%s:%d", conn.Host, port)
}

func (c *mongoConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.client.Ping(ctx, nil)
}

func (c *mongoConnector) Query(ctx context.Context, query string, limit int) (*RowSet, error) {
	var q mongoQuery
	if err := json.Unmarshal([]byte(query), &q); err != nil {
		return nil, fmt.Errorf("parse mongodb query: %w", err)
	}
	if q.Collection == "" {
		return nil, fmt.Errorf("mongodb query requires a collection")
	}
	if limit <= 0 {
		limit = 200
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	filter := bson.M{}
	for k, v := range q.Filter {
		filter[k] = v
	}
	opts := options.Find().SetLimit(int64(limit))
	if len(q.Projection) > 0 {
		opts.SetProjection(bson.M(q.Projection))
	}
	if len(q.Sort) > 0 {
		opts.SetSort(bson.M(q.Sort))
	}

	coll := c.client.Database(c.dbName).Collection(q.Collection)
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(ctx)

	// Collect union of field names across documents for a stable column set
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb read: %w", err)
	}

	colSet := map[string]int{}
	var cols []string
	for _, doc := range docs {
		for k := range doc {
			if _, ok := colSet[k]; !ok {
				colSet[k] = len(cols)
				cols = append(cols, k)
			}
		}
	}

	out := &RowSet{Columns: cols}
	for _, doc := range docs {
		row := make([]any, len(cols))
		for k, v := range doc {
			row[colSet[k]] = formatMongoValue(v)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func (c *mongoConnector) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}

func formatMongoValue(v any) any {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.M, bson.A:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	default:
		return v
	}
}

package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/Adithya-Monish-Kumar-K/trace-ingestor/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/errors"
	rpc "github.com/Adithya-Monish-Kumar-K/trace-ingestor/pkg/grpc"
)

// idPayloadKey holds the original identifier; Qdrant point ids must be
// integers or UUIDs.
const idPayloadKey = "record_id"

// Qdrant stores records as points in a Qdrant collection over gRPC.
type Qdrant struct {
	conn        *grpc.ClientConn
	collections qdrant.CollectionsClient
	points      qdrant.PointsClient
	collection  string
	dimension   int
	logger      *slog.Logger
}

func NewQdrant(client rpc.ClientConfig, collection string, dimension int) (*Qdrant, error) {
	conn, err := rpc.NewClient(client)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConnection, err, "connecting to qdrant at "+client.Addr)
	}
	return &Qdrant{
		conn:        conn,
		collections: qdrant.NewCollectionsClient(conn),
		points:      qdrant.NewPointsClient(conn),
		collection:  collection,
		dimension:   dimension,
		logger:      slog.Default().With("component", "qdrant", "collection", collection),
	}, nil
}

// PointID maps an identifier to its stable UUIDv5 point id.
func PointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

func (q *Qdrant) EnsureIndex(ctx context.Context) error {
	list, err := q.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrConnection, err, "listing qdrant collections")
	}
	for _, c := range list.GetCollections() {
		if c.GetName() != q.collection {
			continue
		}
		info, err := q.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: q.collection})
		if err != nil {
			return apperrors.Wrap(apperrors.ErrConnection, err, "reading qdrant collection "+q.collection)
		}
		size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != 0 && int(size) != q.dimension {
			return apperrors.Newf(apperrors.ErrConfiguration,
				"qdrant collection %s has dimension %d, configured %d", q.collection, size, q.dimension)
		}
		return nil
	}

	_, err = q.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(q.dimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrConnection, err, "creating qdrant collection "+q.collection)
	}
	q.logger.Info("collection created", "dimension", q.dimension, "metric", "cosine")
	return nil
}

func (q *Qdrant) Fetch(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	byPoint := make(map[string]string, len(ids))
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pid := PointID(id)
		byPoint[pid] = id
		pointIDs = append(pointIDs, &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: pid}})
	}
	resp, err := q.points.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            pointIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %d points: %w", len(ids), err)
	}
	for _, p := range resp.GetResult() {
		if id, ok := byPoint[p.GetId().GetUuid()]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (q *Qdrant) Upsert(ctx context.Context, records []ingestion.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := checkDimension(records, q.dimension); err != nil {
		return err
	}
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		payload := toPayload(r.Metadata)
		payload[idPayloadKey] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: r.ID}}
		points = append(points, &qdrant.PointStruct{
			Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: PointID(r.ID)}},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: r.Vector},
				},
			},
			Payload: payload,
		})
	}
	wait := true
	if _, err := q.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}
	return nil
}

func toPayload(meta map[string]any) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(meta)+1)
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
		case int:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
		case int64:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
		case float64:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
		case bool:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
		default:
			out[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprint(val)}}
		}
	}
	return out
}

func (q *Qdrant) Ping(ctx context.Context) error {
	_, err := q.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	return err
}

func (q *Qdrant) Close() error {
	return q.conn.Close()
}

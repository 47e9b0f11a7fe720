// Package mongo keeps Area documents, with their SubAreas embedded, in a
// single MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realty/internal/domain"
)

const collectionName = "areas"

type imageDoc struct {
	URL      string `bson:"url"`
	PublicID string `bson:"public_id"`
}

type subAreaDoc struct {
	ID          string     `bson:"id"`
	Name        string     `bson:"name"`
	Description string     `bson:"description"`
	Images      []imageDoc `bson:"images"`
	Highlights  struct {
		Roads        string `bson:"roads"`
		MetroAccess  string `bson:"metroAccess"`
		SafetyRating int    `bson:"safetyRating"`
		GreenZones   bool   `bson:"greenZones"`
	} `bson:"highlights"`
}

type areaDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
	Images      []imageDoc         `bson:"images"`
	Highlights  struct {
		TotalPopulation      int      `bson:"totalPopulation"`
		AveragePricePerSqft  int      `bson:"averagePricePerSqft"`
		MajorAttractions     []string `bson:"majorAttractions"`
		HasMetroConnectivity bool     `bson:"hasMetroConnectivity"`
	} `bson:"highlights"`
	SubAreas  []subAreaDoc `bson:"subAreas"`
	Version   int64        `bson:"version"`
	CreatedAt time.Time    `bson:"createdAt"`
	UpdatedAt time.Time    `bson:"updatedAt"`
}

type Repo struct{ coll *mongo.Collection }

func New(db *mongo.Database) *Repo { return &Repo{coll: db.Collection(collectionName)} }

// Connect dials uri and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	cl, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := cl.Ping(pctx, nil); err != nil {
		_ = cl.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return cl, nil
}

// EnsureIndexes creates the listing index. Safe to call on every start.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}},
	})
	return err
}

func (r *Repo) Insert(ctx context.Context, a domain.Area) (domain.Area, error) {
	doc := toDoc(a)
	doc.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return domain.Area{}, err
	}
	return fromDoc(doc), nil
}

func (r *Repo) Update(ctx context.Context, a domain.Area, expectedVersion int64) (domain.Area, error) {
	oid, err := primitive.ObjectIDFromHex(a.ID)
	if err != nil {
		return domain.Area{}, notFound(a.ID)
	}
	doc := toDoc(a)
	doc.ID = oid
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": oid, "version": expectedVersion}, doc)
	if err != nil {
		return domain.Area{}, err
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return domain.Area{}, err
		}
		if n == 0 {
			return domain.Area{}, notFound(a.ID)
		}
		return domain.Area{}, fmt.Errorf("area %s changed since version %d: %w", a.ID, expectedVersion, domain.ErrConflict)
	}
	return fromDoc(doc), nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return notFound(id)
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return notFound(id)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (domain.Area, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Area{}, notFound(id)
	}
	var doc areaDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Area{}, notFound(id)
		}
		return domain.Area{}, err
	}
	return fromDoc(doc), nil
}

func (r *Repo) List(ctx context.Context) ([]domain.Area, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []areaDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Area, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, nil
}

func notFound(id string) error { return fmt.Errorf("area %s: %w", id, domain.ErrNotFound) }

// ---- mapping ----

func toDoc(a domain.Area) areaDoc {
	a.Normalize()
	d := areaDoc{
		Name:        a.Name,
		Description: a.Description,
		Images:      toImageDocs(a.Images),
		SubAreas:    make([]subAreaDoc, 0, len(a.SubAreas)),
		Version:     a.Version,
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}
	d.Highlights.TotalPopulation = a.Highlights.TotalPopulation
	d.Highlights.AveragePricePerSqft = a.Highlights.AveragePricePerSqft
	d.Highlights.MajorAttractions = append([]string{}, a.Highlights.MajorAttractions...)
	d.Highlights.HasMetroConnectivity = a.Highlights.HasMetroConnectivity
	for _, sa := range a.SubAreas {
		sd := subAreaDoc{
			ID:          sa.ID,
			Name:        sa.Name,
			Description: sa.Description,
			Images:      toImageDocs(sa.Images),
		}
		sd.Highlights.Roads = sa.Highlights.Roads
		sd.Highlights.MetroAccess = sa.Highlights.MetroAccess
		sd.Highlights.SafetyRating = sa.Highlights.SafetyRating
		sd.Highlights.GreenZones = sa.Highlights.GreenZones
		d.SubAreas = append(d.SubAreas, sd)
	}
	return d
}

func fromDoc(d areaDoc) domain.Area {
	a := domain.Area{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		Images:      fromImageDocs(d.Images),
		Highlights: domain.AreaHighlights{
			TotalPopulation:      d.Highlights.TotalPopulation,
			AveragePricePerSqft:  d.Highlights.AveragePricePerSqft,
			MajorAttractions:     append([]string{}, d.Highlights.MajorAttractions...),
			HasMetroConnectivity: d.Highlights.HasMetroConnectivity,
		},
		SubAreas:  make([]domain.SubArea, 0, len(d.SubAreas)),
		Version:   d.Version,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	for _, sd := range d.SubAreas {
		a.SubAreas = append(a.SubAreas, domain.SubArea{
			ID:          sd.ID,
			Name:        sd.Name,
			Description: sd.Description,
			Images:      fromImageDocs(sd.Images),
			Highlights: domain.SubAreaHighlights{
				Roads:        sd.Highlights.Roads,
				MetroAccess:  sd.Highlights.MetroAccess,
				SafetyRating: sd.Highlights.SafetyRating,
				GreenZones:   sd.Highlights.GreenZones,
			},
		})
	}
	a.Normalize()
	return a
}

func toImageDocs(in []domain.ImageAsset) []imageDoc {
	out := make([]imageDoc, 0, len(in))
	for _, img := range in {
		out = append(out, imageDoc{URL: img.URL, PublicID: img.PublicID})
	}
	return out
}

func fromImageDocs(in []imageDoc) []domain.ImageAsset {
	out := make([]domain.ImageAsset, 0, len(in))
	for _, img := range in {
		out = append(out, domain.ImageAsset{URL: img.URL, PublicID: img.PublicID})
	}
	return out
}

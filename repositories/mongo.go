package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HSouheill/barrim_ledger/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SalesRepsCollection = "sales_reps"
	EarningsCollection  = "commission_earnings"
	AdvancesCollection  = "commission_advances"
	PayoutsCollection   = "commission_payouts"
)

// MongoStore persists the ledger in MongoDB. Transactions need a replica set.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(dbName)}
}

func (s *MongoStore) SalesReps() SalesRepRepository {
	return &mongoSalesReps{coll: s.db.Collection(SalesRepsCollection)}
}

func (s *MongoStore) Earnings() EarningRepository {
	return &mongoEarnings{coll: s.db.Collection(EarningsCollection)}
}

func (s *MongoStore) Advances() AdvanceRepository {
	return &mongoAdvances{coll: s.db.Collection(AdvancesCollection)}
}

func (s *MongoStore) Payouts() PayoutRepository {
	return &mongoPayouts{coll: s.db.Collection(PayoutsCollection)}
}

func (s *MongoStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// EnsureIndexes creates the indexes the ledger relies on for uniqueness and lookups.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		SalesRepsCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		EarningsCollection: {
			{
				Keys:    bson.D{{Key: "sourceType", Value: 1}, {Key: "sourceId", Value: 1}, {Key: "salesRepId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "salesRepId", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "payoutId", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "earnedAt", Value: 1}}},
		},
		AdvancesCollection: {
			{Keys: bson.D{{Key: "salesRepId", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "recoveries.payoutId", Value: 1}}},
		},
		PayoutsCollection: {
			{Keys: bson.D{{Key: "salesRepId", Value: 1}, {Key: "status", Value: 1}}},
			{
				Keys: bson.D{{Key: "idempotencyKey", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"idempotencyKey": bson.M{"$type": "string"}}),
			},
		},
	}

	for name, idx := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes for %s: %w", name, err)
		}
	}
	return nil
}

// missingOrConflict tells apart a missing document from one that failed a
// conditional filter.
func missingOrConflict(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

// sales reps

type mongoSalesReps struct {
	coll *mongo.Collection
}

func (r *mongoSalesReps) Create(ctx context.Context, rep *models.SalesRepresentative) error {
	if rep.ID.IsZero() {
		rep.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, rep)
	return translate(err)
}

func (r *mongoSalesReps) FindByID(ctx context.Context, id primitive.ObjectID) (*models.SalesRepresentative, error) {
	var rep models.SalesRepresentative
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rep); err != nil {
		return nil, translate(err)
	}
	return &rep, nil
}

func (r *mongoSalesReps) List(ctx context.Context, status string) ([]models.SalesRepresentative, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	reps := []models.SalesRepresentative{}
	if err := cursor.All(ctx, &reps); err != nil {
		return nil, err
	}
	return reps, nil
}

func (r *mongoSalesReps) Update(ctx context.Context, rep *models.SalesRepresentative) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": rep.ID}, rep)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// earnings

type mongoEarnings struct {
	coll *mongo.Collection
}

func earningFilterDoc(f EarningFilter) bson.M {
	filter := bson.M{}
	if f.SalesRepID != nil {
		filter["salesRepId"] = *f.SalesRepID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.SourceType != "" {
		filter["sourceType"] = f.SourceType
	}
	if f.SourceID != "" {
		filter["sourceId"] = f.SourceID
	}
	if f.PayoutID != nil {
		filter["payoutId"] = *f.PayoutID
	}
	if f.UnlockedOnly {
		filter["payoutId"] = nil
	}
	if len(f.IDs) > 0 {
		filter["_id"] = bson.M{"$in": f.IDs}
	}
	if f.EarnedBefore != nil {
		filter["earnedAt"] = bson.M{"$lte": *f.EarnedBefore}
	}
	return filter
}

func (r *mongoEarnings) Insert(ctx context.Context, e *models.CommissionEarning) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, e)
	return translate(err)
}

func (r *mongoEarnings) FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommissionEarning, error) {
	var e models.CommissionEarning
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (r *mongoEarnings) Find(ctx context.Context, f EarningFilter) ([]models.CommissionEarning, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cursor, err := r.coll.Find(ctx, earningFilterDoc(f), opts)
	if err != nil {
		return nil, err
	}
	earnings := []models.CommissionEarning{}
	if err := cursor.All(ctx, &earnings); err != nil {
		return nil, err
	}
	return earnings, nil
}

var stampFields = map[string]string{
	models.EarningEarned:   "earnedAt",
	models.EarningPayable:  "payableAt",
	models.EarningPaid:     "paidAt",
	models.EarningReversed: "reversedAt",
}

func (r *mongoEarnings) Transition(ctx context.Context, id primitive.ObjectID, from []string, to string, at time.Time, reason string) (*models.CommissionEarning, error) {
	set := bson.M{"status": to, "updatedAt": at}
	if field, ok := stampFields[to]; ok {
		set[field] = at
	}
	if to == models.EarningReversed {
		set["reversalReason"] = reason
	}

	filter := bson.M{"_id": id, "status": bson.M{"$in": from}, "payoutId": nil}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var e models.CommissionEarning
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, missingOrConflict(ctx, r.coll, id)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *mongoEarnings) LockForPayout(ctx context.Context, repID, payoutID primitive.ObjectID, ids []primitive.ObjectID, at time.Time) (int64, error) {
	filter := bson.M{
		"_id":        bson.M{"$in": ids},
		"salesRepId": repID,
		"status":     models.EarningPayable,
		"payoutId":   nil,
	}
	res, err := r.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"payoutId": payoutID, "updatedAt": at}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *mongoEarnings) MarkPaid(ctx context.Context, payoutID primitive.ObjectID, at time.Time) (int64, error) {
	filter := bson.M{"payoutId": payoutID, "status": models.EarningPayable}
	update := bson.M{"$set": bson.M{"status": models.EarningPaid, "paidAt": at, "updatedAt": at}}
	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *mongoEarnings) ReleasePayout(ctx context.Context, payoutID primitive.ObjectID, at time.Time) (int64, error) {
	update := bson.M{
		"$set":   bson.M{"status": models.EarningPayable, "updatedAt": at},
		"$unset": bson.M{"payoutId": "", "paidAt": ""},
	}
	res, err := r.coll.UpdateMany(ctx, bson.M{"payoutId": payoutID}, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *mongoEarnings) Totals(ctx context.Context, repID *primitive.ObjectID) (models.EarningTotals, error) {
	match := bson.M{}
	if repID != nil {
		match["salesRepId"] = *repID
	}
	pipeline := []bson.M{
		{"$match": match},
		{"$group": bson.M{
			"_id": bson.M{
				"status": "$status",
				"locked": bson.M{"$ne": []interface{}{bson.M{"$ifNull": []interface{}{"$payoutId", nil}}, nil}},
			},
			"total": bson.M{"$sum": "$amount"},
		}},
	}

	var totals models.EarningTotals
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return totals, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row struct {
			ID struct {
				Status string `bson:"status"`
				Locked bool   `bson:"locked"`
			} `bson:"_id"`
			Total decimal.Decimal `bson:"total"`
		}
		if err := cursor.Decode(&row); err != nil {
			return totals, err
		}
		addToTotals(&totals, row.ID.Status, row.ID.Locked, row.Total)
	}
	return totals, cursor.Err()
}

// advances

type mongoAdvances struct {
	coll *mongo.Collection
}

func (r *mongoAdvances) Insert(ctx context.Context, a *models.CommissionAdvance) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, a)
	return translate(err)
}

func (r *mongoAdvances) FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommissionAdvance, error) {
	var a models.CommissionAdvance
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *mongoAdvances) find(ctx context.Context, filter bson.M) ([]models.CommissionAdvance, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "issuedAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	advances := []models.CommissionAdvance{}
	if err := cursor.All(ctx, &advances); err != nil {
		return nil, err
	}
	return advances, nil
}

func (r *mongoAdvances) FindByRep(ctx context.Context, repID primitive.ObjectID, outstandingOnly bool) ([]models.CommissionAdvance, error) {
	filter := bson.M{"salesRepId": repID}
	if outstandingOnly {
		filter["status"] = models.AdvanceOutstanding
	}
	return r.find(ctx, filter)
}

func (r *mongoAdvances) FindByRecoveryPayout(ctx context.Context, payoutID primitive.ObjectID) ([]models.CommissionAdvance, error) {
	return r.find(ctx, bson.M{"recoveries.payoutId": payoutID})
}

func (r *mongoAdvances) Save(ctx context.Context, a *models.CommissionAdvance) error {
	next := *a
	next.Version++
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": a.ID, "version": a.Version}, next)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return missingOrConflict(ctx, r.coll, a.ID)
	}
	a.Version = next.Version
	return nil
}

func (r *mongoAdvances) OutstandingTotal(ctx context.Context, repID *primitive.ObjectID) (decimal.Decimal, error) {
	match := bson.M{"status": models.AdvanceOutstanding}
	if repID != nil {
		match["salesRepId"] = *repID
	}
	pipeline := []bson.M{
		{"$match": match},
		{"$group": bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": bson.M{"$subtract": []interface{}{"$amount", "$recoveredAmount"}}},
		}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return decimal.Zero, err
	}
	defer cursor.Close(ctx)

	var result struct {
		Total decimal.Decimal `bson:"total"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&result); err != nil {
			return decimal.Zero, err
		}
	}
	return result.Total, cursor.Err()
}

// payouts

type mongoPayouts struct {
	coll *mongo.Collection
}

func (r *mongoPayouts) Insert(ctx context.Context, p *models.CommissionPayout) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := r.coll.InsertOne(ctx, p)
	return translate(err)
}

func (r *mongoPayouts) FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommissionPayout, error) {
	var p models.CommissionPayout
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *mongoPayouts) FindByIdempotencyKey(ctx context.Context, key string) (*models.CommissionPayout, error) {
	var p models.CommissionPayout
	if err := r.coll.FindOne(ctx, bson.M{"idempotencyKey": key}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *mongoPayouts) Find(ctx context.Context, f PayoutFilter) ([]models.CommissionPayout, error) {
	filter := bson.M{}
	if f.SalesRepID != nil {
		filter["salesRepId"] = *f.SalesRepID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	payouts := []models.CommissionPayout{}
	if err := cursor.All(ctx, &payouts); err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *mongoPayouts) Save(ctx context.Context, p *models.CommissionPayout, expectedStatus string) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": p.ID, "status": expectedStatus}, p)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return missingOrConflict(ctx, r.coll, p.ID)
	}
	return nil
}

func (r *mongoPayouts) Stats(ctx context.Context) (PayoutStats, error) {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
			"net":   bson.M{"$sum": "$netAmount"},
		}},
	}

	stats := PayoutStats{Counts: map[string]int{}, PaidNet: decimal.Zero}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return stats, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row struct {
			Status string          `bson:"_id"`
			Count  int             `bson:"count"`
			Net    decimal.Decimal `bson:"net"`
		}
		if err := cursor.Decode(&row); err != nil {
			return stats, err
		}
		stats.Counts[row.Status] = row.Count
		if row.Status == models.PayoutPaid {
			stats.PaidNet = row.Net
		}
	}
	return stats, cursor.Err()
}

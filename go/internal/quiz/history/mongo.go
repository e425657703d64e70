package history

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/trivia/go/internal/models"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	gameHistoryCollection = "game_history"
	leaderboardCollection = "leaderboard"
)

// MongoStore keeps history in MongoDB: one document per game in game_history
// and one per player in leaderboard.
type MongoStore struct {
	client      *mongo.Client
	games       *mongo.Collection
	leaderboard *mongo.Collection
}

// ConnectMongo connects to uri and verifies the server is reachable.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetTimeout(30 * time.Second).
		SetConnectTimeout(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := NewMongoStore(client, database)
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info().Str("database", database).Msg("connected to MongoDB")
	return s, nil
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client:      client,
		games:       db.Collection(gameHistoryCollection),
		leaderboard: db.Collection(leaderboardCollection),
	}
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.leaderboard.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"playerName": 1},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create leaderboard index: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// SaveGame inserts the game document and folds each row into the player's
// stats with an upserting pipeline update.
func (s *MongoStore) SaveGame(ctx context.Context, result models.GameResult) error {
	if _, err := s.games.InsertOne(ctx, result); err != nil {
		return fmt.Errorf("insert game %s: %w", result.GameID, err)
	}

	for _, entry := range result.Leaderboard {
		_, err := s.leaderboard.UpdateOne(ctx,
			bson.M{"playerName": entry.Name},
			statsPipeline(entry, result.EndedAt),
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("update stats for %q: %w", entry.Name, err)
		}
	}

	log.Debug().
		Str("game_id", result.GameID).
		Int("players", len(result.Leaderboard)).
		Msg("game saved to mongo")
	return nil
}

func statsPipeline(entry models.LeaderboardEntry, at time.Time) mongo.Pipeline {
	win := 0
	if entry.Rank == 1 {
		win = 1
	}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "totalScore", Value: bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$totalScore", 0}}, entry.Score}}},
			{Key: "gamesPlayed", Value: bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$gamesPlayed", 0}}, 1}}},
			{Key: "wins", Value: bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$wins", 0}}, win}}},
			{Key: "bestScore", Value: bson.M{"$max": bson.A{bson.M{"$ifNull": bson.A{"$bestScore", entry.Score}}, entry.Score}}},
			{Key: "lastPlayed", Value: at},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "averageScore", Value: bson.M{"$divide": bson.A{"$totalScore", "$gamesPlayed"}}},
		}}},
	}
}

func (s *MongoStore) TopPlayers(ctx context.Context, limit int) ([]models.PlayerStats, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "totalScore", Value: -1}, {Key: "playerName", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.leaderboard.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("query top players: %w", err)
	}
	var out []models.PlayerStats
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode top players: %w", err)
	}
	return out, nil
}

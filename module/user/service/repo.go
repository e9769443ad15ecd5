package service

import (
	"context"
	"errors"
	"time"

	usermodel "SProject/module/user/model"
	"SProject/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SessionRepo 会话持久层。持久层是枚举/撤销界面用的索引，
// 不承担存活权威；实现必须容忍同平台出现多条记录（理论上不该有，
// 见不变量，但代码按防御式处理）。
type SessionRepo interface {
	Insert(ctx context.Context, rec *usermodel.UserSession) error
	FindByID(ctx context.Context, sessionID string) (*usermodel.UserSession, error)
	FindByUserPlatform(ctx context.Context, userID, platform string) ([]usermodel.UserSession, error)
	FindByUser(ctx context.Context, userID string) ([]usermodel.UserSession, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteAllExcept(ctx context.Context, userID, keepSessionID string) (int64, error)
	UpdateLastActivity(ctx context.Context, sessionID string, at time.Time) error
}

const sessionColl = "user_sessions"

type mongoSessionRepo struct {
	coll *mongo.Collection
}

func NewMongoSessionRepo(db *mongo.Database) SessionRepo {
	return &mongoSessionRepo{coll: db.Collection(sessionColl)}
}

// EnsureSessionIndexes 启动时建索引：
//   - session_id 唯一
//   - (user_id, platform) 普通索引（驱逐查询路径；单平台单会话靠创建时驱逐保证，不靠唯一约束）
//   - expires_at TTL 索引，仅兜底清理死记录
func EnsureSessionIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(sessionColl).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "platform", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	return errs.WrapMsg(err, "ensure session indexes")
}

func (r *mongoSessionRepo) Insert(ctx context.Context, rec *usermodel.UserSession) error {
	_, err := r.coll.InsertOne(ctx, rec)
	return errs.WrapMsg(err, "insert session", "session_id", rec.SessionID)
}

func (r *mongoSessionRepo) FindByID(ctx context.Context, sessionID string) (*usermodel.UserSession, error) {
	var rec usermodel.UserSession
	err := r.coll.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrRecordNotFound.WrapMsg("session not found", "session_id", sessionID)
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find session", "session_id", sessionID)
	}
	return &rec, nil
}

func (r *mongoSessionRepo) FindByUserPlatform(ctx context.Context, userID, platform string) ([]usermodel.UserSession, error) {
	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID, "platform": platform})
	if err != nil {
		return nil, errs.WrapMsg(err, "find sessions by platform", "user_id", userID)
	}
	var out []usermodel.UserSession
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode sessions", "user_id", userID)
	}
	return out, nil
}

func (r *mongoSessionRepo) FindByUser(ctx context.Context, userID string) ([]usermodel.UserSession, error) {
	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "find sessions", "user_id", userID)
	}
	var out []usermodel.UserSession
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode sessions", "user_id", userID)
	}
	return out, nil
}

func (r *mongoSessionRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"session_id": sessionID})
	return errs.WrapMsg(err, "delete session", "session_id", sessionID)
}

func (r *mongoSessionRepo) DeleteAllExcept(ctx context.Context, userID, keepSessionID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{
		"user_id":    userID,
		"session_id": bson.M{"$ne": keepSessionID},
	})
	if err != nil {
		return 0, errs.WrapMsg(err, "delete other sessions", "user_id", userID)
	}
	return res.DeletedCount, nil
}

func (r *mongoSessionRepo) UpdateLastActivity(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"last_activity_at": at}},
	)
	return errs.WrapMsg(err, "touch session", "session_id", sessionID)
}

package service

import (
	"context"
	"errors"

	usermodel "SProject/module/user/model"
	"SProject/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// PasswordVerifier 口令校验由外部密码库提供（散列算法不在本核心范围）
type PasswordVerifier func(storedHash, plain string) bool

// Authenticator 登录时的凭证检查：查 users 集合 + 注入的口令校验。
// 用户不存在和口令不对返回同一个错误，不暴露账号是否存在。
type Authenticator struct {
	coll   *mongo.Collection
	verify PasswordVerifier
}

func NewAuthenticator(db *mongo.Database, verify PasswordVerifier) *Authenticator {
	return &Authenticator{coll: db.Collection("users"), verify: verify}
}

func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (string, error) {
	var u usermodel.User
	err := a.coll.FindOne(ctx, bson.M{"username": username}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", errs.ErrUnauthorized.WrapMsg("bad credentials")
	}
	if err != nil {
		return "", errs.ErrInternalServer.WrapMsg("find user")
	}
	if !a.verify(u.PasswordHash, password) {
		return "", errs.ErrUnauthorized.WrapMsg("bad credentials")
	}
	return u.UserID, nil
}

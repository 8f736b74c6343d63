package mongostore

import (
	"context"
	"time"

	"cadre-portal/internal/shared/model"
	"cadre-portal/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return insertOne(ctx, s.col(ColUsers), user)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "email", Value: email}})
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetUserByEmployeeID(ctx context.Context, employeeID string) (*model.User, error) {
	e, err := s.GetEmployeeByEmployeeID(ctx, employeeID)
	if err != nil || e == nil || e.UserID == nil {
		return nil, err
	}
	return s.GetUserByID(ctx, *e.UserID)
}

func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.User](ctx, s.col(ColUsers), bson.D{}, opts)
}

func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	return updateFields(ctx, s.col(ColUsers), user.ID, bson.D{
		{Key: "username", Value: user.Username},
		{Key: "email", Value: user.Email},
		{Key: "mobile_number", Value: user.MobileNumber},
		{Key: "role", Value: user.Role},
		{Key: "is_verified", Value: user.IsVerified},
		{Key: "verification_status", Value: user.VerificationStatus},
		{Key: "updated_at", Value: user.UpdatedAt},
	})
}

func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "updated_at", Value: time.Now()},
	})
}

// DeleteUser 删除用户并解除员工档案与 Cadre 主管上的引用
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if err := deleteByID(ctx, s.col(ColUsers), id); err != nil {
		return err
	}
	if _, err := s.col(ColEmployees).UpdateMany(ctx,
		bson.D{{Key: "user_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "user_id", Value: nil}}}}); err != nil {
		return wrapError(err)
	}
	if _, err := s.col(ColCadres).UpdateMany(ctx,
		bson.D{{Key: "controlling_user_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "controlling_user_id", Value: nil}}}}); err != nil {
		return wrapError(err)
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context) (int, int, error) {
	total, err := s.col(ColUsers).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, 0, wrapError(err)
	}
	unverified, err := s.col(ColUsers).CountDocuments(ctx, bson.D{{Key: "is_verified", Value: false}})
	if err != nil {
		return 0, 0, wrapError(err)
	}
	return int(total), int(unverified), nil
}

// ============================================================================
// OTPStore
// ============================================================================

func (s *Store) SetOTP(ctx context.Context, userID, purpose, code string, expiry time.Time) error {
	return updateFields(ctx, s.col(ColUsers), userID, bson.D{
		{Key: "otp_code", Value: code},
		{Key: "otp_expiry", Value: expiry},
		{Key: "otp_purpose", Value: purpose},
		{Key: "updated_at", Value: time.Now()},
	})
}

// ConsumeOTP 过滤条件携带用途、code 与过期判断，命中即消费
func (s *Store) ConsumeOTP(ctx context.Context, userID, purpose, code string, now time.Time, effect storage.OTPEffect) (bool, error) {
	set := bson.D{
		{Key: "otp_code", Value: nil},
		{Key: "otp_expiry", Value: nil},
		{Key: "otp_purpose", Value: nil},
		{Key: "updated_at", Value: now},
	}
	if effect.MarkVerified {
		set = append(set,
			bson.E{Key: "is_verified", Value: true},
			bson.E{Key: "verification_status", Value: model.VerificationVerified})
	}
	if effect.GrantResetUntil != nil {
		set = append(set, bson.E{Key: "reset_granted_until", Value: *effect.GrantResetUntil})
	}
	return updateWhere(ctx, s.col(ColUsers), bson.D{
		{Key: "_id", Value: userID},
		{Key: "otp_purpose", Value: purpose},
		{Key: "otp_code", Value: code},
		{Key: "otp_expiry", Value: bson.D{{Key: "$gt", Value: now}}},
	}, set)
}

func (s *Store) ResetPasswordWithGrant(ctx context.Context, userID, passwordHash string, now time.Time) (bool, error) {
	return updateWhere(ctx, s.col(ColUsers), bson.D{
		{Key: "_id", Value: userID},
		{Key: "reset_granted_until", Value: bson.D{{Key: "$gt", Value: now}}},
	}, bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "reset_granted_until", Value: nil},
		{Key: "updated_at", Value: now},
	})
}

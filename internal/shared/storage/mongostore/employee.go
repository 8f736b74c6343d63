package mongostore

import (
	"context"
	"sort"
	"time"

	"cadre-portal/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// EmployeeStore
// ============================================================================

func (s *Store) CreateEmployee(ctx context.Context, e *model.Employee) error {
	return insertOne(ctx, s.col(ColEmployees), e)
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*model.Employee, error) {
	return findOne[model.Employee](ctx, s.col(ColEmployees), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetEmployeeByUserID(ctx context.Context, userID string) (*model.Employee, error) {
	return findOne[model.Employee](ctx, s.col(ColEmployees), bson.D{{Key: "user_id", Value: userID}})
}

func (s *Store) GetEmployeeByEmployeeID(ctx context.Context, employeeID string) (*model.Employee, error) {
	return findOne[model.Employee](ctx, s.col(ColEmployees), bson.D{{Key: "employee_id", Value: employeeID}})
}

func (s *Store) ListEmployees(ctx context.Context, filter model.EmployeeFilter) ([]*model.Employee, error) {
	q := bson.D{}
	if filter.CadreID != "" {
		q = append(q, bson.E{Key: "cadre_id", Value: filter.CadreID})
	}
	if len(filter.CadreIDs) > 0 {
		// 与 cadre_id 精确条件同时存在时用 $and 组合
		q = append(q, bson.E{Key: "$and", Value: bson.A{
			bson.D{{Key: "cadre_id", Value: bson.D{{Key: "$in", Value: filter.CadreIDs}}}},
		}})
	}
	if filter.Department != "" {
		q = append(q, bson.E{Key: "department", Value: filter.Department})
	}

	opts := options.Find().SetSort(bson.D{{Key: "employee_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit)).SetSkip(int64(filter.Offset))
	}
	return findMany[model.Employee](ctx, s.col(ColEmployees), q, opts)
}

func (s *Store) UpdateEmployee(ctx context.Context, e *model.Employee) error {
	set, err := setDoc(e, "_id", "created_at")
	if err != nil {
		return err
	}
	return updateFields(ctx, s.col(ColEmployees), e.ID, set)
}

func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColEmployees), id)
}

func (s *Store) ListDepartments(ctx context.Context) ([]string, error) {
	var depts []string
	err := s.col(ColEmployees).Distinct(ctx, "department",
		bson.D{{Key: "department", Value: bson.D{{Key: "$ne", Value: ""}}}}).Decode(&depts)
	if err != nil {
		return nil, wrapError(err)
	}
	sort.Strings(depts)
	return depts, nil
}

func (s *Store) CountEmployees(ctx context.Context) (int, error) {
	n, err := s.col(ColEmployees).CountDocuments(ctx, bson.D{})
	return int(n), wrapError(err)
}

// ============================================================================
// CadreStore
// ============================================================================

func (s *Store) CreateCadre(ctx context.Context, c *model.Cadre) error {
	return insertOne(ctx, s.col(ColCadres), c)
}

func (s *Store) GetCadre(ctx context.Context, id string) (*model.Cadre, error) {
	return findOne[model.Cadre](ctx, s.col(ColCadres), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) ListCadres(ctx context.Context) ([]*model.Cadre, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return findMany[model.Cadre](ctx, s.col(ColCadres), bson.D{}, opts)
}

func (s *Store) ListCadresByControllingUser(ctx context.Context, userID string) ([]*model.Cadre, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return findMany[model.Cadre](ctx, s.col(ColCadres), bson.D{{Key: "controlling_user_id", Value: userID}}, opts)
}

func (s *Store) UpdateCadre(ctx context.Context, c *model.Cadre) error {
	return updateFields(ctx, s.col(ColCadres), c.ID, bson.D{
		{Key: "name", Value: c.Name},
		{Key: "code", Value: c.Code},
		{Key: "controlling_authority", Value: c.ControllingAuthority},
		{Key: "controlling_department", Value: c.ControllingDepartment},
		{Key: "controlling_user_id", Value: c.ControllingUserID},
		{Key: "updated_at", Value: c.UpdatedAt},
	})
}

// DeleteCadre 先解除成员关系再删除
func (s *Store) DeleteCadre(ctx context.Context, id string) error {
	if _, err := s.col(ColEmployees).UpdateMany(ctx,
		bson.D{{Key: "cadre_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "cadre_id", Value: nil},
			{Key: "updated_at", Value: time.Now()},
		}}}); err != nil {
		return wrapError(err)
	}
	return deleteByID(ctx, s.col(ColCadres), id)
}

// NextCadreSequence $inc 后返回新值
func (s *Store) NextCadreSequence(ctx context.Context, id string) (int64, error) {
	var c model.Cadre
	err := s.col(ColCadres).FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{
			{Key: "$inc", Value: bson.D{{Key: "sequence", Value: int64(1)}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now()}}},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, wrapError(err)
	}
	return c.Sequence, nil
}

func (s *Store) CountEmployeesByCadre(ctx context.Context) ([]model.CadreCount, error) {
	cadres, err := s.ListCadres(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := s.col(ColEmployees).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "cadre_id", Value: bson.D{{Key: "$type", Value: "string"}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$cadre_id"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	var groups []struct {
		ID string `bson:"_id"`
		N  int    `bson:"n"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(groups))
	for _, g := range groups {
		counts[g.ID] = g.N
	}

	out := make([]model.CadreCount, 0, len(cadres))
	for _, c := range cadres {
		out = append(out, model.CadreCount{CadreID: c.ID, CadreName: c.Name, Employees: counts[c.ID]})
	}
	return out, nil
}

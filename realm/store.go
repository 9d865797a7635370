package realm

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
)

// AncestryStore reads the affiliation graph.
type AncestryStore interface {
	ListAffiliationsByChild(ctx context.Context, childId int) ([]*models.Affiliation, error)
}

// Store is what the resolver reads and writes. Both store.Store and
// memstore.Store satisfy it.
type Store interface {
	AncestryStore

	GetEntity(ctx context.Context, id int) (*models.Entity, error)
	GetEntityByName(ctx context.Context, name string) (*models.Entity, error)
	CreateEntity(ctx context.Context, e *models.Entity) error
	DeleteEntity(ctx context.Context, id int) error
	ListRealmEntities(ctx context.Context, prefix string) ([]*models.Entity, error)
	CreateAffiliation(ctx context.Context, a *models.Affiliation) error
	DeleteAffiliation(ctx context.Context, parentId, childId int, role string) error

	GetRealmEntity(ctx context.Context, table string, id int) (*int, error)
	UpdateRealmEntity(ctx context.Context, table string, id int, realm *int) error
	CountRealmReferences(ctx context.Context, entityId int, tables []string) (int64, error)

	GetUser(ctx context.Context, id int) (*models.User, error)
	GetOrganisation(ctx context.Context, id int) (*models.Organisation, error)
	GetSite(ctx context.Context, id int) (*models.Site, error)
	GetReq(ctx context.Context, id int) (*models.Req, error)
	ListReqItems(ctx context.Context, reqId int) ([]*models.ReqItem, error)
	GetSend(ctx context.Context, id int) (*models.Send, error)
	GetRecv(ctx context.Context, id int) (*models.Recv, error)
	ListHumanResources(ctx context.Context, personId int) ([]*models.HumanResource, error)
	GetCourse(ctx context.Context, id int) (*models.Course, error)
}

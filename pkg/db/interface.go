package db

type DB interface {
	Init() error
	AddBlobToIndex(blob *BlobMeta) (int64, error)
	GetBlobMeta(hash []byte) (*BlobMeta, error)
	AddPlanToIndex(plan *Plan) error
	GetPlanById(ID int64) (*Plan, error)
	GetPlans() ([]*Plan, error)
	GetEntriesForPlan(ID int64) ([]*Entry, error)
}

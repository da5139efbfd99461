package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3" // driver
	"github.com/rs/zerolog/log"
)

func NewSQLLite(dbpath string) (*SQLLiteDB, error) {
	rawDB, err := sql.Open("sqlite3", dbpath)
	return &SQLLiteDB{rawDB: rawDB}, err
}

type SQLLiteDB struct {
	rawDB *sql.DB
}

func (db *SQLLiteDB) Close() error {
	return db.rawDB.Close()
}

func (db *SQLLiteDB) runStatement(sql string) (sql.Result, error) {
	statement, err := db.rawDB.Prepare(sql)
	if err != nil {
		return nil, err
	}
	defer statement.Close()
	return statement.Exec()
}

func (db *SQLLiteDB) Init() (err error) {
	_, err = db.runStatement("PRAGMA foreign_keys = ON")
	if err != nil {
		return
	}
	log.Debug().Msg("Enabling foreign keys")

	_, err = db.runStatement(
		"CREATE TABLE IF NOT EXISTS blobs (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"hash BLOB, " +
			"name BLOB, " +
			"size INTEGER, " +
			"secret BLOB, " +
			"iv BLOB, " +
			"UNIQUE(hash)" +
			")")
	if err != nil {
		return err
	}

	_, err = db.runStatement(
		"CREATE TABLE IF NOT EXISTS plans (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"kind TEXT, " +
			"capability TEXT, " +
			"device TEXT, " +
			"created INTEGER" +
			")")
	if err != nil {
		return err
	}

	_, err = db.runStatement(
		"CREATE TABLE IF NOT EXISTS entries (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"planid INTEGER, " +
			"ordernumber INTEGER, " +
			"kind TEXT, " +
			"domain TEXT, " +
			"path TEXT, " +
			"uid INTEGER, " +
			"gid INTEGER, " +
			"linkgroup INTEGER, " +
			"hash BLOB, " +
			"size INTEGER, " +
			"FOREIGN KEY(planid) REFERENCES plans(id)" +
			")")
	if err != nil {
		return err
	}

	_, err = db.runStatement(
		"CREATE TABLE IF NOT EXISTS xattrs (" +
			"entryid INTEGER, " +
			"name TEXT, " +
			"value BLOB, " +
			"FOREIGN KEY(entryid) REFERENCES entries(id)" +
			")")

	return err
}

func (db *SQLLiteDB) AddBlobToIndex(blob *BlobMeta) (int64, error) {
	result, err := db.rawDB.Exec("INSERT INTO blobs (hash, name, size, secret, iv) VALUES(?, ?, ?, ?, ?)",
		blob.Hash, blob.Name, blob.Size, blob.Secret, blob.IV)
	if err != nil {
		return -1, err
	}
	blob.ID, err = result.LastInsertId()
	return blob.ID, err
}

func (db *SQLLiteDB) GetBlobMeta(hash []byte) (*BlobMeta, error) {
	var bm BlobMeta
	err := db.rawDB.QueryRow("SELECT id, hash, name, size, secret, iv FROM blobs WHERE hash=?", hash).
		Scan(&bm.ID, &bm.Hash, &bm.Name, &bm.Size, &bm.Secret, &bm.IV)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bm, nil
}

// AddPlanToIndex stores the plan and its entries in one transaction so a
// plan is never indexed partially.
func (db *SQLLiteDB) AddPlanToIndex(plan *Plan) error {
	tx, err := db.rawDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec("INSERT INTO plans (kind, capability, device, created) VALUES(?, ?, ?, ?)",
		plan.Kind, plan.Capability, plan.Device, plan.Timestamp)
	if err != nil {
		return err
	}
	if plan.ID, err = result.LastInsertId(); err != nil {
		return err
	}

	log.Debug().Int("number", len(plan.Entries)).Msg("Number of plan entries")
	for _, e := range plan.Entries {
		result, err := tx.Exec("INSERT INTO entries (planid, ordernumber, kind, domain, path, uid, gid, linkgroup, hash, size) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			plan.ID, e.Order, e.Kind, e.Domain, e.Path, e.User, e.Group, e.LinkGroup, e.Hash, e.Size)
		if err != nil {
			return err
		}
		if e.ID, err = result.LastInsertId(); err != nil {
			return err
		}
		for name, value := range e.Xattrs {
			if _, err := tx.Exec("INSERT INTO xattrs (entryid, name, value) VALUES(?, ?, ?)", e.ID, name, value); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (db *SQLLiteDB) GetPlanById(ID int64) (*Plan, error) {
	plan := &Plan{}
	err := db.rawDB.QueryRow("SELECT id, kind, capability, device, created FROM plans WHERE id=?", ID).
		Scan(&plan.ID, &plan.Kind, &plan.Capability, &plan.Device, &plan.Timestamp)
	if err != nil {
		return nil, err
	}
	plan.Entries, err = db.GetEntriesForPlan(ID)
	return plan, err
}

func (db *SQLLiteDB) GetPlans() (plans []*Plan, err error) {
	rows, err := db.rawDB.Query("SELECT id, kind, capability, device, created FROM plans ORDER BY created DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		plan := &Plan{}
		if err := rows.Scan(&plan.ID, &plan.Kind, &plan.Capability, &plan.Device, &plan.Timestamp); err != nil {
			return nil, err
		}
		log.Debug().
			Int64("id", plan.ID).
			Str("kind", plan.Kind).
			Msg("plan found")
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (db *SQLLiteDB) GetEntriesForPlan(id int64) (entries []*Entry, err error) {
	rows, err := db.rawDB.Query("SELECT id, ordernumber, kind, domain, path, uid, gid, linkgroup, hash, size FROM entries WHERE planid=? ORDER BY ordernumber", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := map[int64]*Entry{}
	for rows.Next() {
		e := &Entry{}
		var link sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Order, &e.Kind, &e.Domain, &e.Path, &e.User, &e.Group, &link, &e.Hash, &e.Size); err != nil {
			return nil, err
		}
		if link.Valid {
			l := link.Int64
			e.LinkGroup = &l
		}
		byID[e.ID] = e
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	xrows, err := db.rawDB.Query("SELECT x.entryid, x.name, x.value FROM xattrs AS x JOIN entries AS e ON x.entryid=e.id WHERE e.planid=?", id)
	if err != nil {
		return nil, err
	}
	defer xrows.Close()
	for xrows.Next() {
		var entryID int64
		var name string
		var value []byte
		if err := xrows.Scan(&entryID, &name, &value); err != nil {
			return nil, err
		}
		if e, ok := byID[entryID]; ok {
			if e.Xattrs == nil {
				e.Xattrs = map[string][]byte{}
			}
			e.Xattrs[name] = value
		}
	}
	return entries, xrows.Err()
}

// Package memstore is an in-memory implementation of the store interfaces.
// It mirrors the unique constraints of the MySQL schema and supports
// snapshot/rollback transactions, which makes it suitable for DB-free tests
// and local tooling.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/utils"
)

// RealmHook computes the realm of a row about to be written. ok=false
// leaves realm_entity as it is.
type RealmHook func(ctx context.Context, table string, row models.Row) (realmEntity int, ok bool, err error)

type data struct {
	entities      map[int]models.Entity
	affiliations  map[int]models.Affiliation
	users         map[int]models.User
	persons       map[int]models.Person
	memberships   map[int]models.RoleMembership
	organisations map[int]models.Organisation
	sites         map[int]models.Site
	warehouses    map[int]models.Warehouse
	items         map[int]models.Item
	packs         map[int]models.ItemPack
	kitItems      map[int]models.KitItem
	invItems      map[int]models.InvItem
	minimums      map[int]models.Minimum
	adjs          map[int]models.Adj
	adjItems      map[int]models.AdjItem
	kittings      map[int]models.Kitting
	cards         map[int]models.StockCard
	logs          map[int]models.StockLog
	reqs          map[int]models.Req
	reqItems      map[int]models.ReqItem
	approvers     map[int]models.Approver
	approvals     map[int]models.ReqApproval
	orderItems    map[int]models.OrderItem
	sends         map[int]models.Send
	recvs         map[int]models.Recv
	tracks        map[int]models.TrackItem
	notifications map[int]models.Notification
	outbox        map[int]models.EmailOutbox
	locations     map[int]models.Location
	hrs           map[int]models.HumanResource
	courses       map[int]models.Course
	trainings     map[int]models.Training
	// realm_entity of rows of tables without a typed collection
	extra map[string]map[int]*int
}

type Store struct {
	mu     sync.Mutex
	d      *data
	nextID int

	RealmHook RealmHook
}

func New() *Store {
	return &Store{d: newData(), nextID: 1000}
}

func newData() *data {
	return &data{
		entities:      map[int]models.Entity{},
		affiliations:  map[int]models.Affiliation{},
		users:         map[int]models.User{},
		persons:       map[int]models.Person{},
		memberships:   map[int]models.RoleMembership{},
		organisations: map[int]models.Organisation{},
		sites:         map[int]models.Site{},
		warehouses:    map[int]models.Warehouse{},
		items:         map[int]models.Item{},
		packs:         map[int]models.ItemPack{},
		kitItems:      map[int]models.KitItem{},
		invItems:      map[int]models.InvItem{},
		minimums:      map[int]models.Minimum{},
		adjs:          map[int]models.Adj{},
		adjItems:      map[int]models.AdjItem{},
		kittings:      map[int]models.Kitting{},
		cards:         map[int]models.StockCard{},
		logs:          map[int]models.StockLog{},
		reqs:          map[int]models.Req{},
		reqItems:      map[int]models.ReqItem{},
		approvers:     map[int]models.Approver{},
		approvals:     map[int]models.ReqApproval{},
		orderItems:    map[int]models.OrderItem{},
		sends:         map[int]models.Send{},
		recvs:         map[int]models.Recv{},
		tracks:        map[int]models.TrackItem{},
		notifications: map[int]models.Notification{},
		outbox:        map[int]models.EmailOutbox{},
		locations:     map[int]models.Location{},
		hrs:           map[int]models.HumanResource{},
		courses:       map[int]models.Course{},
		trainings:     map[int]models.Training{},
		extra:         map[string]map[int]*int{},
	}
}

func cloneMap[T any](m map[int]T) map[int]T {
	out := make(map[int]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *data) clone() *data {
	extra := make(map[string]map[int]*int, len(d.extra))
	for t, rows := range d.extra {
		extra[t] = cloneMap(rows)
	}
	return &data{
		entities:      cloneMap(d.entities),
		affiliations:  cloneMap(d.affiliations),
		users:         cloneMap(d.users),
		persons:       cloneMap(d.persons),
		memberships:   cloneMap(d.memberships),
		organisations: cloneMap(d.organisations),
		sites:         cloneMap(d.sites),
		warehouses:    cloneMap(d.warehouses),
		items:         cloneMap(d.items),
		packs:         cloneMap(d.packs),
		kitItems:      cloneMap(d.kitItems),
		invItems:      cloneMap(d.invItems),
		minimums:      cloneMap(d.minimums),
		adjs:          cloneMap(d.adjs),
		adjItems:      cloneMap(d.adjItems),
		kittings:      cloneMap(d.kittings),
		cards:         cloneMap(d.cards),
		logs:          cloneMap(d.logs),
		reqs:          cloneMap(d.reqs),
		reqItems:      cloneMap(d.reqItems),
		approvers:     cloneMap(d.approvers),
		approvals:     cloneMap(d.approvals),
		orderItems:    cloneMap(d.orderItems),
		sends:         cloneMap(d.sends),
		recvs:         cloneMap(d.recvs),
		tracks:        cloneMap(d.tracks),
		notifications: cloneMap(d.notifications),
		outbox:        cloneMap(d.outbox),
		locations:     cloneMap(d.locations),
		hrs:           cloneMap(d.hrs),
		courses:       cloneMap(d.courses),
		trainings:     cloneMap(d.trainings),
		extra:         extra,
	}
}

// Transaction runs fn and restores the previous state when fn fails.
// Writes are not isolated from concurrent callers.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()
	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// allocID returns id when it is set (explicit ids from fixtures), else the next free id.
func (s *Store) allocID(id int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != 0 {
		if id >= s.nextID {
			s.nextID = id + 1
		}
		return id
	}
	s.nextID++
	return s.nextID
}

// resolveRealm runs the realm hook outside the lock.
func (s *Store) resolveRealm(ctx context.Context, table string, row models.Row, current *int) (*int, error) {
	if s.RealmHook == nil || utils.IsRealmSkipped(ctx) {
		return current, nil
	}
	realm, ok, err := s.RealmHook(ctx, table, row)
	if err != nil {
		return current, err
	}
	if !ok {
		return current, nil
	}
	return &realm, nil
}

func get[T any](s *Store, m func(*data) map[int]T, id int, alive func(T) bool) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := m(s.d)[id]
	if !ok || (alive != nil && !alive(v)) {
		return nil, utils.ErrorRecordNotFound
	}
	return &v, nil
}

func filter[T any](s *Store, m func(*data) map[int]T, keep func(T) bool) []*T {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := m(s.d)
	ids := make([]int, 0, len(rows))
	for id, v := range rows {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		v := rows[id]
		out = append(out, &v)
	}
	return out
}

func put[T any](s *Store, m func(*data) map[int]T, id int, v T) {
	s.mu.Lock()
	m(s.d)[id] = v
	s.mu.Unlock()
}

// update applies fn to row id under the lock.
func update[T any](s *Store, m func(*data) map[int]T, id int, fn func(*T)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := m(s.d)
	v, ok := rows[id]
	if !ok {
		return utils.ErrorRecordNotFound
	}
	fn(&v)
	rows[id] = v
	return nil
}

// insertUnique stores v unless an existing row conflicts with it.
func insertUnique[T any](s *Store, m func(*data) map[int]T, id int, v T, conflict func(T) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := m(s.d)
	if conflict != nil {
		for _, existing := range rows {
			if conflict(existing) {
				return utils.ErrorDuplicate
			}
		}
	}
	rows[id] = v
	return nil
}

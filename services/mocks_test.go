package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Dosada05/pickleball-platform/models"
	"github.com/Dosada05/pickleball-platform/repositories"
	"github.com/Dosada05/pickleball-platform/storage"
)

// memStore - склад в памяти, реализующий все интерфейсы репозиториев
// и Transactor. Один мьютекс на склад: каждая операция атомарна, как
// соответствующий SQL-оператор.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users         map[int]*models.User
	teams         map[int]*models.Team
	members       map[int]*models.TeamMember
	joinRequests  map[int]*models.TeamJoinRequest
	invites       map[int]*models.TeamInvite
	events        map[int]*models.Event
	reservations  map[int]*models.Reservation
	notifications map[int]*models.Notification
	rooms         map[int]*models.ChatRoom
	messages      map[int]*models.ChatMessage

	nextID int
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[int]*models.User),
		teams:         make(map[int]*models.Team),
		members:       make(map[int]*models.TeamMember),
		joinRequests:  make(map[int]*models.TeamJoinRequest),
		invites:       make(map[int]*models.TeamInvite),
		events:        make(map[int]*models.Event),
		reservations:  make(map[int]*models.Reservation),
		notifications: make(map[int]*models.Notification),
		rooms:         make(map[int]*models.ChatRoom),
		messages:      make(map[int]*models.ChatMessage),
	}
}

func (s *memStore) newID() int {
	s.nextID++
	return s.nextID
}

// WithinTx повторяет BEGIN/COMMIT/ROLLBACK: транзакции сериализуются
// через txMu, при ошибке fn склад откатывается к снимку. Сериализация
// заодно моделирует очередь на блокировке строки события.
func (s *memStore) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type storeSnapshot struct {
	users         map[int]*models.User
	teams         map[int]*models.Team
	members       map[int]*models.TeamMember
	joinRequests  map[int]*models.TeamJoinRequest
	invites       map[int]*models.TeamInvite
	events        map[int]*models.Event
	reservations  map[int]*models.Reservation
	notifications map[int]*models.Notification
	rooms         map[int]*models.ChatRoom
	messages      map[int]*models.ChatMessage
	nextID        int
}

func copyEntities[T any](src map[int]*T) map[int]*T {
	dst := make(map[int]*T, len(src))
	for id, v := range src {
		cp := *v
		dst[id] = &cp
	}
	return dst
}

func (s *memStore) snapshot() *storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &storeSnapshot{
		users:         copyEntities(s.users),
		teams:         copyEntities(s.teams),
		members:       copyEntities(s.members),
		joinRequests:  copyEntities(s.joinRequests),
		invites:       copyEntities(s.invites),
		events:        copyEntities(s.events),
		reservations:  copyEntities(s.reservations),
		notifications: copyEntities(s.notifications),
		rooms:         copyEntities(s.rooms),
		messages:      copyEntities(s.messages),
		nextID:        s.nextID,
	}
}

func (s *memStore) restore(snap *storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.teams = snap.teams
	s.members = snap.members
	s.joinRequests = snap.joinRequests
	s.invites = snap.invites
	s.events = snap.events
	s.reservations = snap.reservations
	s.notifications = snap.notifications
	s.rooms = snap.rooms
	s.messages = snap.messages
	s.nextID = snap.nextID
}

// --- UserRepository ---

func (s *memStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
		if u.Nickname == user.Nickname {
			return repositories.ErrUserNicknameConflict
		}
	}
	user.ID = s.newID()
	user.CreatedAt = time.Now()
	s.users[user.ID] = user
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (s *memStore) GetByProvider(ctx context.Context, provider models.AuthProvider, providerID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Provider == provider && u.ProviderID != nil && *u.ProviderID == providerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (s *memStore) Update(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return repositories.ErrUserNotFound
	}
	for _, u := range s.users {
		if u.ID != user.ID && u.Nickname == user.Nickname {
			return repositories.ErrUserNicknameConflict
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memStore) UpdateAvatarKey(ctx context.Context, id int, key *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.AvatarKey = key
	return nil
}

func (s *memStore) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repositories.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

// userRepo/teamRepo и далее - обёртки, разводящие одноимённые методы
// разных интерфейсов по типам.

type userRepo struct{ *memStore }
type teamRepo struct{ *memStore }
type memberRepo struct{ *memStore }
type joinRequestRepo struct{ *memStore }
type inviteRepo struct{ *memStore }
type eventRepo struct{ *memStore }
type reservationRepo struct{ *memStore }
type notificationRepo struct{ *memStore }
type chatRepo struct{ *memStore }

// --- TeamRepository ---

func (s teamRepo) Create(ctx context.Context, exec repositories.SQLExecutor, team *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.teams {
		if t.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	team.ID = s.newID()
	team.CreatedAt = time.Now()
	cp := *team
	s.teams[team.ID] = &cp
	return nil
}

func (s teamRepo) GetByID(ctx context.Context, id int) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	cp := *t
	return &cp, nil
}

func (s teamRepo) List(ctx context.Context, filter repositories.TeamFilter) ([]*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	teams := make([]*models.Team, 0)
	for _, t := range s.teams {
		if filter.Region != nil && (t.Region == nil || *t.Region != *filter.Region) {
			continue
		}
		if filter.Visibility != nil && t.Visibility != *filter.Visibility {
			continue
		}
		cp := *t
		teams = append(teams, &cp)
	}
	return teams, nil
}

func (s teamRepo) Update(ctx context.Context, team *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[team.ID]; !ok {
		return repositories.ErrTeamNotFound
	}
	for _, t := range s.teams {
		if t.ID != team.ID && t.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	cp := *team
	s.teams[team.ID] = &cp
	return nil
}

func (s teamRepo) UpdateImageKeys(ctx context.Context, id int, iconKey, headerKey *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	if iconKey != nil {
		t.IconKey = iconKey
	}
	if headerKey != nil {
		t.HeaderKey = headerKey
	}
	return nil
}

func (s teamRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(s.teams, id)
	for mid, m := range s.members {
		if m.TeamID == id {
			delete(s.members, mid)
		}
	}
	for rid, r := range s.joinRequests {
		if r.TeamID == id {
			delete(s.joinRequests, rid)
		}
	}
	for iid, inv := range s.invites {
		if inv.TeamID == id {
			delete(s.invites, iid)
		}
	}
	for eid, e := range s.events {
		if e.TeamID != nil && *e.TeamID == id {
			delete(s.events, eid)
			for rid, r := range s.reservations {
				if r.EventID == eid {
					delete(s.reservations, rid)
				}
			}
			s.deleteRoomsLocked(func(room *models.ChatRoom) bool {
				return room.EventID != nil && *room.EventID == eid
			})
		}
	}
	s.deleteRoomsLocked(func(room *models.ChatRoom) bool {
		return room.TeamID != nil && *room.TeamID == id
	})
	return nil
}

// deleteRoomsLocked повторяет каскад ON DELETE CASCADE комнат и их
// сообщений; вызывается под mu.
func (s *memStore) deleteRoomsLocked(match func(*models.ChatRoom) bool) {
	for roomID, room := range s.rooms {
		if !match(room) {
			continue
		}
		delete(s.rooms, roomID)
		for msgID, m := range s.messages {
			if m.RoomID == roomID {
				delete(s.messages, msgID)
			}
		}
	}
}

// --- MemberRepository ---

func (s memberRepo) Create(ctx context.Context, exec repositories.SQLExecutor, member *models.TeamMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.TeamID == member.TeamID && m.UserID == member.UserID {
			return repositories.ErrMemberConflict
		}
	}
	member.ID = s.newID()
	member.CreatedAt = time.Now()
	cp := *member
	s.members[member.ID] = &cp
	return nil
}

func (s memberRepo) FindByTeamAndUser(ctx context.Context, teamID, userID int) (*models.TeamMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.TeamID == teamID && m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repositories.ErrMemberNotFound
}

func (s memberRepo) ListByTeam(ctx context.Context, teamID int) ([]*models.TeamMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := make([]*models.TeamMember, 0)
	for _, m := range s.members {
		if m.TeamID == teamID {
			cp := *m
			members = append(members, &cp)
		}
	}
	return members, nil
}

func (s memberRepo) ListTeamIDsByUser(ctx context.Context, userID int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0)
	for _, m := range s.members {
		if m.UserID == userID {
			ids = append(ids, m.TeamID)
		}
	}
	return ids, nil
}

func (s memberRepo) ListManagers(ctx context.Context, teamID int) ([]*models.TeamMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	managers := make([]*models.TeamMember, 0)
	for _, m := range s.members {
		if m.TeamID == teamID && m.Role.CanManage() {
			cp := *m
			managers = append(managers, &cp)
		}
	}
	return managers, nil
}

func (s memberRepo) UpdateRole(ctx context.Context, exec repositories.SQLExecutor, teamID, userID int, role models.TeamRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.TeamID == teamID && m.UserID == userID {
			m.Role = role
			return nil
		}
	}
	return repositories.ErrMemberNotFound
}

func (s memberRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, teamID, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.members {
		if m.TeamID == teamID && m.UserID == userID {
			delete(s.members, id)
			return nil
		}
	}
	return repositories.ErrMemberNotFound
}

func (s memberRepo) TransferOwnership(ctx context.Context, exec repositories.SQLExecutor, teamID, currentOwnerID, newOwnerID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current, target *models.TeamMember
	for _, m := range s.members {
		if m.TeamID != teamID {
			continue
		}
		if m.UserID == currentOwnerID {
			current = m
		}
		if m.UserID == newOwnerID {
			target = m
		}
	}
	if current == nil || current.Role != models.RoleOwner || target == nil {
		return repositories.ErrMemberNotFound
	}
	current.Role = models.RoleAdmin
	target.Role = models.RoleOwner
	return nil
}

// --- JoinRequestRepository ---

func (s joinRequestRepo) Create(ctx context.Context, exec repositories.SQLExecutor, request *models.TeamJoinRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.joinRequests {
		if r.TeamID == request.TeamID && r.UserID == request.UserID && r.Status == models.JoinRequestPending {
			return repositories.ErrJoinRequestConflict
		}
	}
	request.ID = s.newID()
	request.Status = models.JoinRequestPending
	request.CreatedAt = time.Now()
	cp := *request
	s.joinRequests[request.ID] = &cp
	return nil
}

func (s joinRequestRepo) GetByID(ctx context.Context, id int) (*models.TeamJoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.joinRequests[id]
	if !ok {
		return nil, repositories.ErrJoinRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (s joinRequestRepo) ListPendingByTeam(ctx context.Context, teamID int) ([]*models.TeamJoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	requests := make([]*models.TeamJoinRequest, 0)
	for _, r := range s.joinRequests {
		if r.TeamID == teamID && r.Status == models.JoinRequestPending {
			cp := *r
			requests = append(requests, &cp)
		}
	}
	return requests, nil
}

func (s joinRequestRepo) Resolve(ctx context.Context, exec repositories.SQLExecutor, id int, status models.JoinRequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.joinRequests[id]
	if !ok || r.Status != models.JoinRequestPending {
		return repositories.ErrJoinRequestNotFound
	}
	r.Status = status
	return nil
}

// --- InviteRepository ---

func (s inviteRepo) Create(ctx context.Context, invite *models.TeamInvite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.invites {
		if i.Token == invite.Token {
			return repositories.ErrInviteTokenConflict
		}
	}
	if _, ok := s.teams[invite.TeamID]; !ok {
		return repositories.ErrInviteTeamInvalid
	}
	invite.ID = s.newID()
	invite.CreatedAt = time.Now()
	cp := *invite
	s.invites[invite.ID] = &cp
	return nil
}

func (s inviteRepo) GetByToken(ctx context.Context, token string) (*models.TeamInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.invites {
		if i.Token == token {
			cp := *i
			return &cp, nil
		}
	}
	return nil, repositories.ErrInviteNotFound
}

func (s inviteRepo) ListActiveByTeam(ctx context.Context, teamID int) ([]*models.TeamInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	invites := make([]*models.TeamInvite, 0)
	for _, i := range s.invites {
		if i.TeamID == teamID && i.UsedByID == nil && now.Before(i.ExpiresAt) {
			cp := *i
			invites = append(invites, &cp)
		}
	}
	return invites, nil
}

func (s inviteRepo) Consume(ctx context.Context, exec repositories.SQLExecutor, token string, userID int) (*models.TeamInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.invites {
		if i.Token != token {
			continue
		}
		if i.UsedByID != nil || !time.Now().Before(i.ExpiresAt) {
			return nil, repositories.ErrInviteConsumed
		}
		now := time.Now()
		i.UsedByID = &userID
		i.UsedAt = &now
		cp := *i
		return &cp, nil
	}
	return nil, repositories.ErrInviteConsumed
}

func (s inviteRepo) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now()
	for id, i := range s.invites {
		if !now.Before(i.ExpiresAt) {
			delete(s.invites, id)
			n++
		}
	}
	return n, nil
}

// --- EventRepository ---

func (s eventRepo) Create(ctx context.Context, exec repositories.SQLExecutor, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.TeamID != nil {
		if _, ok := s.teams[*event.TeamID]; !ok {
			return repositories.ErrEventTeamInvalid
		}
	}
	event.ID = s.newID()
	event.Status = models.EventActive
	event.CreatedAt = time.Now()
	cp := *event
	s.events[event.ID] = &cp
	return nil
}

func (s eventRepo) GetByID(ctx context.Context, id int) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	cp := *e
	for _, r := range s.reservations {
		if r.EventID == id {
			cp.ReservationCount++
		}
	}
	return &cp, nil
}

func (s eventRepo) List(ctx context.Context, filter repositories.EventFilter) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	visible := make(map[int]bool, len(filter.VisibleToTeamIDs))
	for _, id := range filter.VisibleToTeamIDs {
		visible[id] = true
	}
	now := time.Now()
	events := make([]*models.Event, 0)
	for _, e := range s.events {
		if filter.Region != nil && (e.Region == nil || *e.Region != *filter.Region) {
			continue
		}
		if filter.SkillLevel != nil && (e.SkillLevel == nil || *e.SkillLevel != *filter.SkillLevel) {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		if filter.TeamID != nil && (e.TeamID == nil || *e.TeamID != *filter.TeamID) {
			continue
		}
		if filter.UpcomingOnly && !e.StartTime.After(now) {
			continue
		}
		if e.TeamID != nil && e.Visibility == models.EventPrivate && !visible[*e.TeamID] {
			continue
		}
		cp := *e
		events = append(events, &cp)
	}
	return events, nil
}

func (s eventRepo) Update(ctx context.Context, exec repositories.SQLExecutor, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; !ok {
		return repositories.ErrEventNotFound
	}
	cp := *event
	s.events[event.ID] = &cp
	return nil
}

func (s eventRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.EventStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	e.Status = status
	return nil
}

func (s eventRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return repositories.ErrEventNotFound
	}
	delete(s.events, id)
	for rid, r := range s.reservations {
		if r.EventID == id {
			delete(s.reservations, rid)
		}
	}
	s.deleteRoomsLocked(func(room *models.ChatRoom) bool {
		return room.EventID != nil && *room.EventID == id
	})
	return nil
}

func (s eventRepo) CompleteFinished(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now()
	for _, e := range s.events {
		if e.Status == models.EventActive && !e.EndTime.After(now) {
			e.Status = models.EventCompleted
			n++
		}
	}
	return n, nil
}

// --- ReservationRepository ---

func (s reservationRepo) CreateIfCapacity(ctx context.Context, exec repositories.SQLExecutor, res *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[res.EventID]
	if !ok || e.Status != models.EventActive {
		return repositories.ErrEventCapacityReached
	}
	count := 0
	for _, r := range s.reservations {
		if r.EventID == res.EventID {
			if r.UserID == res.UserID {
				return repositories.ErrReservationConflict
			}
			count++
		}
	}
	if e.MaxParticipants != nil && count >= *e.MaxParticipants {
		return repositories.ErrEventCapacityReached
	}
	res.ID = s.newID()
	res.CreatedAt = time.Now()
	cp := *res
	s.reservations[res.ID] = &cp
	return nil
}

func (s reservationRepo) GetByID(ctx context.Context, id int) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, repositories.ErrReservationNotFound
	}
	cp := *r
	return &cp, nil
}

func (s reservationRepo) FindByEventAndUser(ctx context.Context, eventID, userID int) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reservations {
		if r.EventID == eventID && r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repositories.ErrReservationNotFound
}

func (s reservationRepo) ListByEvent(ctx context.Context, eventID int) ([]*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reservations := make([]*models.Reservation, 0)
	for _, r := range s.reservations {
		if r.EventID == eventID {
			cp := *r
			reservations = append(reservations, &cp)
		}
	}
	return reservations, nil
}

func (s reservationRepo) CountByEvent(ctx context.Context, eventID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.reservations {
		if r.EventID == eventID {
			count++
		}
	}
	return count, nil
}

func (s reservationRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[id]; !ok {
		return repositories.ErrReservationNotFound
	}
	delete(s.reservations, id)
	return nil
}

// --- NotificationRepository ---

func (s notificationRepo) Create(ctx context.Context, exec repositories.SQLExecutor, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.newID()
	n.CreatedAt = time.Now()
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s notificationRepo) ListByUser(ctx context.Context, userID int) ([]*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notifications := make([]*models.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID {
			cp := *n
			notifications = append(notifications, &cp)
		}
	}
	return notifications, nil
}

func (s notificationRepo) CountUnread(ctx context.Context, userID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s notificationRepo) MarkRead(ctx context.Context, id, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return repositories.ErrNotificationNotFound
	}
	n.IsRead = true
	return nil
}

func (s notificationRepo) MarkAllRead(ctx context.Context, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.UserID == userID {
			n.IsRead = true
		}
	}
	return nil
}

func (s notificationRepo) Delete(ctx context.Context, id, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return repositories.ErrNotificationNotFound
	}
	delete(s.notifications, id)
	return nil
}

// --- ChatRepository ---

func (s chatRepo) GetOrCreateEventRoom(ctx context.Context, eventID int) (*models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range s.rooms {
		if room.Kind == models.RoomEvent && room.EventID != nil && *room.EventID == eventID {
			cp := *room
			return &cp, nil
		}
	}
	room := &models.ChatRoom{
		ID:        s.newID(),
		Kind:      models.RoomEvent,
		EventID:   &eventID,
		CreatedAt: time.Now(),
	}
	s.rooms[room.ID] = room
	cp := *room
	return &cp, nil
}

func (s chatRepo) GetOrCreateTeamRoom(ctx context.Context, teamID int) (*models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range s.rooms {
		if room.Kind == models.RoomTeam && room.TeamID != nil && *room.TeamID == teamID {
			cp := *room
			return &cp, nil
		}
	}
	room := &models.ChatRoom{
		ID:        s.newID(),
		Kind:      models.RoomTeam,
		TeamID:    &teamID,
		CreatedAt: time.Now(),
	}
	s.rooms[room.ID] = room
	cp := *room
	return &cp, nil
}

func (s chatRepo) GetRoomByID(ctx context.Context, id int) (*models.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, repositories.ErrChatRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (s chatRepo) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = s.newID()
	msg.CreatedAt = time.Now()
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s chatRepo) ListMessages(ctx context.Context, roomID int, before int, limit int) ([]*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// id растёт монотонно; собираем по возрастанию и берём хвост.
	all := make([]*models.ChatMessage, 0)
	for id := 1; id <= s.nextID; id++ {
		m, ok := s.messages[id]
		if !ok || m.RoomID != roomID {
			continue
		}
		if before > 0 && m.ID >= before {
			continue
		}
		cp := *m
		all = append(all, &cp)
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// failingNotifier валит каждую отправку; проверяет, что сервисы
// откатывают переход состояния вместе с несостоявшимся уведомлением.
type failingNotifier struct{}

func (failingNotifier) Dispatch(ctx context.Context, exec repositories.SQLExecutor, n *models.Notification) error {
	return errors.New("notification store unavailable")
}

// --- заглушка загрузчика файлов ---

type fakeUploader struct {
	mu       sync.Mutex
	uploaded map[string]string // key -> contentType
	deleted  []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploaded: make(map[string]string)}
}

func (f *fakeUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[key] = contentType
	return &storage.UploadResult{Key: key, Location: "https://cdn.test/" + key}, nil
}

func (f *fakeUploader) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

// --- общие помощники сборки ---

type fixture struct {
	store    *memStore
	uploader *fakeUploader

	notifications NotificationService
	auth          AuthService
	users         UserService
	teams         TeamService
	joinRequests  JoinRequestService
	invites       InviteService
	events        EventService
	chats         ChatService
}

func newFixture() *fixture {
	store := newMemStore()
	uploader := newFakeUploader()

	notifications := NewNotificationService(notificationRepo{store})
	f := &fixture{
		store:         store,
		uploader:      uploader,
		notifications: notifications,
		auth:          NewAuthService(userRepo{store}, ProviderSignInConfig{}),
		users:         NewUserService(userRepo{store}, uploader),
		teams:         NewTeamService(store, teamRepo{store}, memberRepo{store}, notifications, uploader),
		joinRequests:  NewJoinRequestService(store, joinRequestRepo{store}, teamRepo{store}, memberRepo{store}, notifications, uploader),
		invites:       NewInviteService(store, inviteRepo{store}, memberRepo{store}, teamRepo{store}),
		events:        NewEventService(store, eventRepo{store}, reservationRepo{store}, memberRepo{store}, userRepo{store}, teamRepo{store}, notifications, uploader, nil),
		chats:         NewChatService(chatRepo{store}, eventRepo{store}, reservationRepo{store}, memberRepo{store}, uploader),
	}
	return f
}

func (f *fixture) addUser(nickname string) *models.User {
	user := &models.User{
		Email:    nickname + "@test.local",
		Nickname: nickname,
		Provider: models.ProviderLocal,
	}
	if err := f.store.Create(context.Background(), user); err != nil {
		panic(err)
	}
	return user
}

func (f *fixture) addTeam(name string, visibility models.TeamVisibility, ownerID int) *models.Team {
	ctx := context.Background()
	team := &models.Team{Name: name, Visibility: visibility}
	if err := (teamRepo{f.store}).Create(ctx, nil, team); err != nil {
		panic(err)
	}
	owner := &models.TeamMember{TeamID: team.ID, UserID: ownerID, Role: models.RoleOwner}
	if err := (memberRepo{f.store}).Create(ctx, nil, owner); err != nil {
		panic(err)
	}
	return team
}

func (f *fixture) addMember(teamID, userID int, role models.TeamRole) *models.TeamMember {
	member := &models.TeamMember{TeamID: teamID, UserID: userID, Role: role}
	if err := (memberRepo{f.store}).Create(context.Background(), nil, member); err != nil {
		panic(err)
	}
	return member
}

func (f *fixture) memberRole(teamID, userID int) (models.TeamRole, bool) {
	member, err := (memberRepo{f.store}).FindByTeamAndUser(context.Background(), teamID, userID)
	if err != nil {
		return "", false
	}
	return member.Role, true
}

func (f *fixture) notificationsFor(userID int) []*models.Notification {
	list, err := f.notifications.List(context.Background(), userID)
	if err != nil {
		panic(err)
	}
	return list
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

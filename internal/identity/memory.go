// AngelaMos | 2026
// memory.go

package identity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BfdCampos/workplay/internal/core"
)

type memoryData struct {
	users         map[string]User
	emails        map[string]string
	accounts      map[string]Account
	accountKeys   map[string]string
	sessions      map[string]Session
	sessionTokens map[string]string
	tokens        map[string]VerificationToken
	roles         map[string]Role
	roleChanges   []RoleChange
}

func newMemoryData() *memoryData {
	d := &memoryData{
		users:         make(map[string]User),
		emails:        make(map[string]string),
		accounts:      make(map[string]Account),
		accountKeys:   make(map[string]string),
		sessions:      make(map[string]Session),
		sessionTokens: make(map[string]string),
		tokens:        make(map[string]VerificationToken),
		roles:         make(map[string]Role),
	}
	for _, role := range DefaultRoles() {
		d.roles[role.ID] = role
	}
	return d
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		users:         make(map[string]User, len(d.users)),
		emails:        make(map[string]string, len(d.emails)),
		accounts:      make(map[string]Account, len(d.accounts)),
		accountKeys:   make(map[string]string, len(d.accountKeys)),
		sessions:      make(map[string]Session, len(d.sessions)),
		sessionTokens: make(map[string]string, len(d.sessionTokens)),
		tokens:        make(map[string]VerificationToken, len(d.tokens)),
		roles:         make(map[string]Role, len(d.roles)),
		roleChanges:   append([]RoleChange(nil), d.roleChanges...),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.emails {
		c.emails[k] = v
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	for k, v := range d.accountKeys {
		c.accountKeys[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = v
	}
	for k, v := range d.sessionTokens {
		c.sessionTokens[k] = v
	}
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	for k, v := range d.roles {
		c.roles[k] = v
	}
	return c
}

// MemoryStore keeps everything in process. It enforces the same unique keys
// as the Postgres schema and serializes transactions behind one mutex.
type MemoryStore struct {
	mu   *sync.Mutex
	data *memoryData
	inTx bool
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu:   &sync.Mutex{},
		data: newMemoryData(),
		now:  time.Now,
	}
}

func (m *MemoryStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &MemoryStore{mu: m.mu, data: m.data.clone(), inTx: true, now: m.now}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	m.data = tx.data
	return nil
}

func accountKey(provider, providerAccountID string) string {
	return provider + "\x00" + providerAccountID
}

func tokenKey(identifier, tokenHash string) string {
	return identifier + "\x00" + tokenHash
}

func (m *MemoryStore) withDashboard(u User) *User {
	u.Dashboard = m.data.roles[u.RoleID].Dashboard
	return &u
}

func (m *MemoryStore) CreateUser(_ context.Context, user *User) error {
	defer m.lock()()

	if _, ok := m.data.roles[user.RoleID]; !ok {
		return fmt.Errorf("create user: unknown role %q: %w", user.RoleID, core.ErrInvalidInput)
	}
	if user.Email != nil {
		if _, taken := m.data.emails[*user.Email]; taken {
			return fmt.Errorf("create user: %w", core.ErrConflict)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if _, exists := m.data.users[user.ID]; exists {
		return fmt.Errorf("create user: %w", core.ErrConflict)
	}

	now := m.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Dashboard = m.data.roles[user.RoleID].Dashboard

	m.data.users[user.ID] = *user
	if user.Email != nil {
		m.data.emails[*user.Email] = user.ID
	}
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	defer m.lock()()

	user, ok := m.data.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	return m.withDashboard(user), nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	defer m.lock()()

	id, ok := m.data.emails[email]
	if !ok {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	return m.withDashboard(m.data.users[id]), nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, patch UserPatch) (*User, error) {
	defer m.lock()()

	user, ok := m.data.users[patch.ID]
	if !ok {
		return nil, fmt.Errorf("update user: %w", core.ErrNotFound)
	}

	if patch.Email != nil && (user.Email == nil || *user.Email != *patch.Email) {
		if owner, taken := m.data.emails[*patch.Email]; taken && owner != user.ID {
			return nil, fmt.Errorf("update user: %w", core.ErrConflict)
		}
		if user.Email != nil {
			delete(m.data.emails, *user.Email)
		}
		email := *patch.Email
		user.Email = &email
		m.data.emails[email] = user.ID
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Image != nil {
		user.Image = *patch.Image
	}
	if patch.EmailVerified != nil {
		verified := *patch.EmailVerified
		user.EmailVerified = &verified
	}
	user.UpdatedAt = m.now()

	m.data.users[user.ID] = user
	return m.withDashboard(user), nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, id string) error {
	defer m.lock()()

	user, ok := m.data.users[id]
	if !ok {
		return fmt.Errorf("delete user: %w", core.ErrNotFound)
	}
	for _, a := range m.data.accounts {
		if a.UserID == id {
			return fmt.Errorf("delete user: still referenced: %w", core.ErrConflict)
		}
	}
	for _, s := range m.data.sessions {
		if s.UserID == id {
			return fmt.Errorf("delete user: still referenced: %w", core.ErrConflict)
		}
	}

	if user.Email != nil {
		delete(m.data.emails, *user.Email)
	}
	delete(m.data.users, id)
	return nil
}

func (m *MemoryStore) ListUsers(
	_ context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	defer m.lock()()

	params.Normalize()
	search := strings.ToLower(params.Search)

	matched := make([]User, 0, len(m.data.users))
	for _, u := range m.data.users {
		if params.Role != "" && u.RoleID != params.Role {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(u.EmailAddress(), search) {
			continue
		}
		matched = append(matched, *m.withDashboard(u))
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := params.Offset()
	if start > total {
		start = total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}

	return matched[start:end], total, nil
}

func (m *MemoryStore) CountUsersByRole(_ context.Context) ([]RoleCount, error) {
	defer m.lock()()

	byRole := make(map[string]int)
	for _, u := range m.data.users {
		byRole[u.RoleID]++
	}

	counts := make([]RoleCount, 0, len(byRole))
	for roleID, count := range byRole {
		counts = append(counts, RoleCount{RoleID: roleID, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].RoleID < counts[j].RoleID })
	return counts, nil
}

func (m *MemoryStore) CreateAccount(_ context.Context, account *Account) error {
	defer m.lock()()

	if _, ok := m.data.users[account.UserID]; !ok {
		return fmt.Errorf("create account: unknown user: %w", core.ErrNotFound)
	}
	key := accountKey(account.Provider, account.ProviderAccountID)
	if _, taken := m.data.accountKeys[key]; taken {
		return fmt.Errorf("create account: %w", core.ErrConflict)
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.CreatedAt = m.now()

	m.data.accounts[account.ID] = *account
	m.data.accountKeys[key] = account.ID
	return nil
}

func (m *MemoryStore) GetAccount(
	_ context.Context,
	provider, providerAccountID string,
) (*Account, error) {
	defer m.lock()()

	id, ok := m.data.accountKeys[accountKey(provider, providerAccountID)]
	if !ok {
		return nil, fmt.Errorf("get account: %w", core.ErrNotFound)
	}
	account := m.data.accounts[id]
	return &account, nil
}

func (m *MemoryStore) GetUserByAccount(
	_ context.Context,
	provider, providerAccountID string,
) (*User, error) {
	defer m.lock()()

	id, ok := m.data.accountKeys[accountKey(provider, providerAccountID)]
	if !ok {
		return nil, fmt.Errorf("get user by account: %w", core.ErrNotFound)
	}
	user, ok := m.data.users[m.data.accounts[id].UserID]
	if !ok {
		return nil, fmt.Errorf("get user by account: %w", core.ErrNotFound)
	}
	return m.withDashboard(user), nil
}

func (m *MemoryStore) DeleteAccount(
	_ context.Context,
	provider, providerAccountID string,
) error {
	defer m.lock()()

	key := accountKey(provider, providerAccountID)
	id, ok := m.data.accountKeys[key]
	if !ok {
		return fmt.Errorf("delete account: %w", core.ErrNotFound)
	}
	delete(m.data.accounts, id)
	delete(m.data.accountKeys, key)
	return nil
}

func (m *MemoryStore) DeleteAccountsByUser(_ context.Context, userID string) (int64, error) {
	defer m.lock()()

	var n int64
	for id, a := range m.data.accounts {
		if a.UserID == userID {
			delete(m.data.accounts, id)
			delete(m.data.accountKeys, accountKey(a.Provider, a.ProviderAccountID))
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListAccountsByUser(_ context.Context, userID string) ([]Account, error) {
	defer m.lock()()

	accounts := []Account{}
	for _, a := range m.data.accounts {
		if a.UserID == userID {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, session *Session) error {
	defer m.lock()()

	if _, ok := m.data.users[session.UserID]; !ok {
		return fmt.Errorf("create session: unknown user: %w", core.ErrNotFound)
	}
	if _, taken := m.data.sessionTokens[session.TokenHash]; taken {
		return fmt.Errorf("create session: %w", core.ErrConflict)
	}
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.CreatedAt = m.now()

	stored := *session
	stored.Token = ""
	m.data.sessions[session.ID] = stored
	m.data.sessionTokens[session.TokenHash] = session.ID
	return nil
}

func (m *MemoryStore) GetSessionAndUser(
	_ context.Context,
	tokenHash string,
) (*SessionAndUser, error) {
	defer m.lock()()

	id, ok := m.data.sessionTokens[tokenHash]
	if !ok {
		return nil, fmt.Errorf("get session and user: %w", core.ErrNotFound)
	}
	session := m.data.sessions[id]
	user, ok := m.data.users[session.UserID]
	if !ok {
		return nil, fmt.Errorf("get session and user: %w", core.ErrNotFound)
	}
	return &SessionAndUser{Session: session, User: *m.withDashboard(user)}, nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	defer m.lock()()

	session, ok := m.data.sessions[id]
	if !ok {
		return nil, fmt.Errorf("get session: %w", core.ErrNotFound)
	}
	return &session, nil
}

func (m *MemoryStore) UpdateSession(
	_ context.Context,
	tokenHash string,
	expires time.Time,
) (*Session, error) {
	defer m.lock()()

	id, ok := m.data.sessionTokens[tokenHash]
	if !ok {
		return nil, fmt.Errorf("update session: %w", core.ErrNotFound)
	}
	session := m.data.sessions[id]
	session.Expires = expires
	m.data.sessions[id] = session
	return &session, nil
}

func (m *MemoryStore) deleteSession(id string) {
	session := m.data.sessions[id]
	delete(m.data.sessionTokens, session.TokenHash)
	delete(m.data.sessions, id)
}

func (m *MemoryStore) DeleteSessionByToken(_ context.Context, tokenHash string) (int64, error) {
	defer m.lock()()

	id, ok := m.data.sessionTokens[tokenHash]
	if !ok {
		return 0, nil
	}
	m.deleteSession(id)
	return 1, nil
}

func (m *MemoryStore) DeleteSessionByID(_ context.Context, id string) (int64, error) {
	defer m.lock()()

	if _, ok := m.data.sessions[id]; !ok {
		return 0, nil
	}
	m.deleteSession(id)
	return 1, nil
}

func (m *MemoryStore) DeleteSessionsByUser(_ context.Context, userID string) (int64, error) {
	defer m.lock()()

	var n int64
	for id, s := range m.data.sessions {
		if s.UserID == userID {
			m.deleteSession(id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DeleteAllSessions(_ context.Context) (int64, error) {
	defer m.lock()()

	n := int64(len(m.data.sessions))
	m.data.sessions = make(map[string]Session)
	m.data.sessionTokens = make(map[string]string)
	return n, nil
}

func (m *MemoryStore) ListSessionsByUser(_ context.Context, userID string) ([]Session, error) {
	defer m.lock()()

	sessions := []Session{}
	for _, s := range m.data.sessions {
		if s.UserID == userID {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (m *MemoryStore) CountActiveSessions(_ context.Context, now time.Time) (int, error) {
	defer m.lock()()

	count := 0
	for _, s := range m.data.sessions {
		if !s.IsExpired(now) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	defer m.lock()()

	var n int64
	for id, s := range m.data.sessions {
		if s.IsExpired(now) {
			m.deleteSession(id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateVerificationToken(
	_ context.Context,
	token *VerificationToken,
) error {
	defer m.lock()()

	key := tokenKey(token.Identifier, token.TokenHash)
	if _, taken := m.data.tokens[key]; taken {
		return fmt.Errorf("create verification token: %w", core.ErrConflict)
	}

	stored := *token
	stored.Token = ""
	m.data.tokens[key] = stored
	return nil
}

func (m *MemoryStore) ConsumeVerificationToken(
	_ context.Context,
	identifier, tokenHash string,
) (*VerificationToken, error) {
	defer m.lock()()

	key := tokenKey(identifier, tokenHash)
	token, ok := m.data.tokens[key]
	if !ok {
		return nil, fmt.Errorf("consume verification token: %w", core.ErrNotFound)
	}
	delete(m.data.tokens, key)
	return &token, nil
}

func (m *MemoryStore) DeleteExpiredVerificationTokens(
	_ context.Context,
	now time.Time,
) (int64, error) {
	defer m.lock()()

	var n int64
	for key, t := range m.data.tokens {
		if t.IsExpired(now) {
			delete(m.data.tokens, key)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListRoles(_ context.Context) ([]Role, error) {
	defer m.lock()()

	roles := make([]Role, 0, len(m.data.roles))
	for _, r := range m.data.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Dashboard != roles[j].Dashboard {
			return !roles[i].Dashboard
		}
		return roles[i].ID < roles[j].ID
	})
	return roles, nil
}

func (m *MemoryStore) GetRole(_ context.Context, id string) (*Role, error) {
	defer m.lock()()

	role, ok := m.data.roles[id]
	if !ok {
		return nil, fmt.Errorf("get role: %w", core.ErrNotFound)
	}
	return &role, nil
}

func (m *MemoryStore) SetUserRole(
	_ context.Context,
	userID, roleID, actor string,
) (*User, error) {
	defer m.lock()()

	if _, ok := m.data.roles[roleID]; !ok {
		return nil, fmt.Errorf(
			"set user role: unknown role %q: %w",
			roleID,
			core.ErrInvalidInput,
		)
	}
	user, ok := m.data.users[userID]
	if !ok {
		return nil, fmt.Errorf("set user role: %w", core.ErrNotFound)
	}

	if user.RoleID != roleID {
		now := m.now()
		m.data.roleChanges = append(m.data.roleChanges, RoleChange{
			ID:        uuid.New().String(),
			UserID:    userID,
			FromRole:  user.RoleID,
			ToRole:    roleID,
			Actor:     actor,
			CreatedAt: now,
		})
		user.RoleID = roleID
		user.UpdatedAt = now
		m.data.users[userID] = user
	}

	return m.withDashboard(user), nil
}

func (m *MemoryStore) ListRoleChanges(_ context.Context, userID string) ([]RoleChange, error) {
	defer m.lock()()

	changes := []RoleChange{}
	for i := len(m.data.roleChanges) - 1; i >= 0; i-- {
		if m.data.roleChanges[i].UserID == userID {
			changes = append(changes, m.data.roleChanges[i])
		}
	}
	return changes, nil
}

// ReassignUserData moves accounts and sessions. Reassign targets name
// tables this store does not hold, so they are ignored here.
func (m *MemoryStore) ReassignUserData(_ context.Context, from, to string) error {
	defer m.lock()()

	if _, ok := m.data.users[to]; !ok {
		return fmt.Errorf("reassign user data: %w", core.ErrNotFound)
	}
	for id, a := range m.data.accounts {
		if a.UserID == from {
			a.UserID = to
			m.data.accounts[id] = a
		}
	}
	for id, s := range m.data.sessions {
		if s.UserID == from {
			s.UserID = to
			m.data.sessions[id] = s
		}
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)

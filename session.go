package dbconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateClosed: constructed with deferred open, or never opened.
	StateClosed State = iota
	// StateOpen: the connection is pinned and commands may run.
	StateOpen
	// StateDisposed: Close has run. Terminal.
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TxState tracks the session's single optional transaction.
type TxState int

const (
	TxNotUsed TxState = iota
	TxActive
	TxEnded
)

func (t TxState) String() string {
	switch t {
	case TxNotUsed:
		return "not-used"
	case TxActive:
		return "active"
	case TxEnded:
		return "ended"
	default:
		return fmt.Sprintf("TxState(%d)", int(t))
	}
}

// Session owns one database connection and at most one transaction on it.
// Every command of the session runs on that connection, inside the
// transaction while it is active.
//
// A Session is not safe for concurrent use. It allows one open result cursor
// at a time; starting another command while a Rows is unread fails with
// ErrResultsOpen.
type Session struct {
	cfg      Config
	provider Provider
	frag     Fragments
	acc      *Accessors
	observer Observer

	db     *sql.DB
	ownsDB bool
	conn   conn
	tx     *sql.Tx

	state   State
	txState TxState
	cursor  *Rows
}

// Connect builds a session from cfg and, unless cfg.Deferred is set, opens it.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	p, err := cfg.provider()
	if err != nil {
		return nil, err
	}
	s := &Session{
		cfg:      cfg,
		provider: p,
		frag:     p.fragments(),
		acc:      cfg.Accessors,
		observer: cfg.Observer,
		db:       cfg.DB,
	}
	if cfg.Deferred {
		return s, nil
	}
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ConnectWith is Connect for a setting plus options.
//
// Example:
//
//	s, err := dbconn.ConnectWith(ctx,
//	    dbconn.Setting{Name: "main", DSN: dsn, Provider: "sqlserver"},
//	    dbconn.WithIsolation(sql.LevelReadCommitted),
//	)
//	if err != nil {
//	    return err
//	}
//	defer s.Close() // commits unless Rollback ran
func ConnectWith(ctx context.Context, setting Setting, opts ...Option) (*Session, error) {
	cfg := Config{Setting: setting}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return Connect(ctx, cfg)
}

// Open pins a connection and, when an isolation level is configured, begins
// the session's transaction. Only a closed session can be opened.
func (s *Session) Open(ctx context.Context) (err error) {
	defer s.observe(ctx, "open", "", time.Now(), &err)
	switch s.state {
	case StateOpen:
		return fmt.Errorf("%w: session already open", ErrInvalidSessionState)
	case StateDisposed:
		return fmt.Errorf("%w: session disposed", ErrInvalidSessionState)
	}

	if s.db == nil {
		db, err := sql.Open(s.provider.DriverName, s.cfg.Setting.DSN)
		if err != nil {
			return execErr("open", "", err)
		}
		s.db, s.ownsDB = db, true
	}
	c, err := s.db.Conn(ctx)
	if err != nil {
		return execErr("open", "", err)
	}
	if s.cfg.Isolation != nil {
		// The transaction outlives ctx; it ends with Commit, Rollback or Close.
		tx, err := c.BeginTx(context.WithoutCancel(ctx), &sql.TxOptions{
			Isolation: *s.cfg.Isolation,
			ReadOnly:  s.cfg.ReadOnly,
		})
		if err != nil {
			_ = c.Close()
			return execErr("begin", "", err)
		}
		s.tx = tx
		s.txState = TxActive
	}
	s.conn = c
	s.state = StateOpen
	return nil
}

// Commit commits the active transaction.
//
// A failed commit is rolled back and reported to the observer; Commit itself
// then returns nil. An error is returned only when that rollback fails too,
// or when there is no active transaction.
//
// database/sql marks the transaction finished once the driver's commit
// returns, so the follow-up rollback is normally sql.ErrTxDone and never
// reaches the server. Whether the server discards the work then depends on
// the driver and on the connection being torn down by Close.
func (s *Session) Commit() error {
	ctx, start := context.Background(), time.Now()
	if err := s.txReady(); err != nil {
		s.observe(ctx, "commit", "", start, &err)
		return err
	}
	s.txState = TxEnded
	err := s.tx.Commit()
	if err != nil {
		err = execErr("commit", "", err)
		if rerr := s.tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			err = errors.Join(err, execErr("rollback", "", rerr))
			s.observe(ctx, "commit", "", start, &err)
			return err
		}
	}
	s.observe(ctx, "commit", "", start, &err)
	return nil
}

// Rollback discards the active transaction's changes.
func (s *Session) Rollback() (err error) {
	defer s.observe(context.Background(), "rollback", "", time.Now(), &err)
	if err := s.txReady(); err != nil {
		return err
	}
	s.txState = TxEnded
	return execErr("rollback", "", s.tx.Rollback())
}

// Close releases the session: an open cursor is closed, an active
// transaction is committed, and the connection is returned. A handle the
// session opened itself is closed too; one passed in with WithDB is not.
//
// Close is idempotent; calls after the first return nil. Failures are joined
// and also reported to the observer.
func (s *Session) Close() (err error) {
	if s.state == StateDisposed {
		return nil
	}
	defer s.observe(context.Background(), "close", "", time.Now(), &err)

	var errs []error
	if s.cursor != nil {
		errs = append(errs, s.cursor.Close())
	}
	if s.txState == TxActive {
		s.txState = TxEnded
		errs = append(errs, execErr("commit", "", s.tx.Commit()))
	}
	if s.conn != nil {
		errs = append(errs, execErr("close", "", s.conn.Close()))
	}
	if s.ownsDB && s.db != nil {
		errs = append(errs, execErr("close", "", s.db.Close()))
	}
	s.state = StateDisposed
	return errors.Join(errs...)
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// TxState returns the transaction state.
func (s *Session) TxState() TxState { return s.txState }

// Provider returns the provider the session speaks.
func (s *Session) Provider() Provider { return s.provider }

func (s *Session) ready() error {
	if s.state != StateOpen {
		return fmt.Errorf("%w: session is %s", ErrInvalidSessionState, s.state)
	}
	if s.cursor != nil {
		return ErrResultsOpen
	}
	return nil
}

func (s *Session) txReady() error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.txState != TxActive {
		return fmt.Errorf("%w: no active transaction (%s)", ErrInvalidSessionState, s.txState)
	}
	return nil
}

func (s *Session) runner() runner {
	if s.txState == TxActive {
		return s.tx
	}
	return s.conn
}

// observe reports the outcome in *errp to the observer. It is deferred with
// the operation's start time.
func (s *Session) observe(ctx context.Context, op, table string, start time.Time, errp *error) {
	s.observer.OnSessionOp(ctx, op, table, *errp, time.Since(start), s.provider.Name)
}

package source

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Source reads the raw point-of-sale tables. Every method returns the full
// table; date filtering happens in the sale builder.
type Source interface {
	Tickets(ctx context.Context) ([]Ticket, error)
	TicketLines(ctx context.Context) ([]TicketLine, error)
	Receipts(ctx context.Context) ([]Receipt, error)
	Payments(ctx context.Context) ([]Payment, error)
	Taxes(ctx context.Context) ([]Tax, error)
}

// DB is the gorm-backed Source.
type DB struct {
	db *gorm.DB
}

// New wraps an open gorm connection.
func New(db *gorm.DB) *DB {
	return &DB{db: db}
}

// Open connects to the uniCenta MySQL database. The DSN must carry
// parseTime=true.
func Open(dsn string) (*DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stderr, "\r\n", log.LstdFlags),
			logger.Config{
				Colorful:      false,
				LogLevel:      logger.Error,
				SlowThreshold: time.Second,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect point-of-sale database: %w", err)
	}
	return New(db), nil
}

// Close releases the underlying connection pool.
func (s *DB) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *DB) Tickets(ctx context.Context) ([]Ticket, error) {
	var rows []Ticket
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read tickets: %w", err)
	}
	return rows, nil
}

func (s *DB) TicketLines(ctx context.Context) ([]TicketLine, error) {
	var rows []TicketLine
	if err := s.db.WithContext(ctx).Order("ticket, line").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read ticketlines: %w", err)
	}
	return rows, nil
}

func (s *DB) Receipts(ctx context.Context) ([]Receipt, error) {
	var rows []Receipt
	if err := s.db.WithContext(ctx).Order("datenew").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read receipts: %w", err)
	}
	return rows, nil
}

func (s *DB) Payments(ctx context.Context) ([]Payment, error) {
	var rows []Payment
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read payments: %w", err)
	}
	return rows, nil
}

func (s *DB) Taxes(ctx context.Context) ([]Tax, error) {
	var rows []Tax
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read taxes: %w", err)
	}
	return rows, nil
}

// ReadAll reads every table the sync needs.
func ReadAll(ctx context.Context, src Source) (*Collections, error) {
	var (
		c   Collections
		err error
	)
	if c.Tickets, err = src.Tickets(ctx); err != nil {
		return nil, err
	}
	if c.TicketLines, err = src.TicketLines(ctx); err != nil {
		return nil, err
	}
	if c.Receipts, err = src.Receipts(ctx); err != nil {
		return nil, err
	}
	if c.Payments, err = src.Payments(ctx); err != nil {
		return nil, err
	}
	if c.Taxes, err = src.Taxes(ctx); err != nil {
		return nil, err
	}
	return &c, nil
}

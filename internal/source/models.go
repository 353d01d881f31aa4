// =============================================================================
// posledger - Point-of-Sale Source Models
// =============================================================================
//
// Verbatim rows of the uniCenta oPOS tables the sync reads. The structs map
// one-to-one onto the columns that matter; every other column is ignored.
// Rows are immutable once fetched.
//
// JOIN KEYS:
//   receipts.id     == tickets.id
//   ticketlines.ticket == tickets.id
//   payments.receipt   == receipts.id
//   taxes.category     == product.taxcategoryid (inside ticketlines.attributes)
//
// =============================================================================

package source

import "time"

// Ticket is a row of the tickets table.
type Ticket struct {
	ID         string `gorm:"column:id;primaryKey" json:"id"`
	TicketType int    `gorm:"column:tickettype" json:"tickettype"`
	TicketID   int    `gorm:"column:ticketid" json:"ticketid"`
	Person     string `gorm:"column:person" json:"person"`
	Customer   string `gorm:"column:customer" json:"customer"`
	Status     int    `gorm:"column:status" json:"status"`
}

func (Ticket) TableName() string { return "tickets" }

// TicketLine is a row of the ticketlines table. Attributes holds the product
// properties as Java properties XML.
type TicketLine struct {
	Ticket     string  `gorm:"column:ticket;primaryKey" json:"ticket"`
	Line       int     `gorm:"column:line;primaryKey" json:"line"`
	Product    string  `gorm:"column:product" json:"product"`
	Units      float64 `gorm:"column:units" json:"units"`
	Price      float64 `gorm:"column:price" json:"price"`
	TaxID      string  `gorm:"column:taxid" json:"taxid"`
	Attributes []byte  `gorm:"column:attributes" json:"attributes"`
}

func (TicketLine) TableName() string { return "ticketlines" }

// Receipt is a row of the receipts table.
type Receipt struct {
	ID      string    `gorm:"column:id;primaryKey" json:"id"`
	Money   string    `gorm:"column:money" json:"money"`
	DateNew time.Time `gorm:"column:datenew" json:"datenew"`
	Person  string    `gorm:"column:person" json:"person"`
}

func (Receipt) TableName() string { return "receipts" }

// Payment is a row of the payments table. Method is the uniCenta payment
// name ("cash", "magcard", "paperin", ...).
type Payment struct {
	ID      string  `gorm:"column:id;primaryKey" json:"id"`
	Receipt string  `gorm:"column:receipt" json:"receipt"`
	Method  string  `gorm:"column:payment" json:"payment"`
	Total   float64 `gorm:"column:total" json:"total"`
	TransID string  `gorm:"column:transid" json:"transid"`
	Notes   string  `gorm:"column:notes" json:"notes"`
}

func (Payment) TableName() string { return "payments" }

// Tax is a row of the taxes table. Rate is a fraction (0.21 for 21%).
type Tax struct {
	ID       string  `gorm:"column:id;primaryKey" json:"id"`
	Name     string  `gorm:"column:name" json:"name"`
	Category string  `gorm:"column:category" json:"category"`
	Rate     float64 `gorm:"column:rate" json:"rate"`
}

func (Tax) TableName() string { return "taxes" }

// Collections is one complete read of the source tables.
type Collections struct {
	Tickets     []Ticket
	TicketLines []TicketLine
	Receipts    []Receipt
	Payments    []Payment
	Taxes       []Tax
}

// Package catalog holds the paper-supply product list and the loaders that
// materialize the catalog and quote history and seed a fresh ledger.
package catalog

import "github.com/shopspring/decimal"

// Supply is a product the company can sell. Prices are per sheet or per unit.
type Supply struct {
	ItemName  string
	Category  string
	UnitPrice decimal.Decimal
}

const (
	CategoryPaper       = "paper"
	CategoryProduct     = "product"
	CategoryLargeFormat = "large_format"
	CategorySpecialty   = "specialty"
)

func supply(name, category, price string) Supply {
	return Supply{ItemName: name, Category: category, UnitPrice: decimal.RequireFromString(price)}
}

// PaperSupplies is the full product list. Only a sample of it is stocked
// (see GenerateSampleInventory).
var PaperSupplies = []Supply{
	// Paper types, per sheet
	supply("A4 paper", CategoryPaper, "0.05"),
	supply("Letter-sized paper", CategoryPaper, "0.06"),
	supply("Cardstock", CategoryPaper, "0.15"),
	supply("Colored paper", CategoryPaper, "0.10"),
	supply("Glossy paper", CategoryPaper, "0.20"),
	supply("Matte paper", CategoryPaper, "0.18"),
	supply("Recycled paper", CategoryPaper, "0.08"),
	supply("Eco-friendly paper", CategoryPaper, "0.12"),
	supply("Poster paper", CategoryPaper, "0.25"),
	supply("Banner paper", CategoryPaper, "0.30"),
	supply("Kraft paper", CategoryPaper, "0.10"),
	supply("Construction paper", CategoryPaper, "0.07"),
	supply("Wrapping paper", CategoryPaper, "0.15"),
	supply("Glitter paper", CategoryPaper, "0.22"),
	supply("Decorative paper", CategoryPaper, "0.18"),
	supply("Letterhead paper", CategoryPaper, "0.12"),
	supply("Legal-size paper", CategoryPaper, "0.08"),
	supply("Crepe paper", CategoryPaper, "0.05"),
	supply("Photo paper", CategoryPaper, "0.25"),
	supply("Uncoated paper", CategoryPaper, "0.06"),
	supply("Butcher paper", CategoryPaper, "0.10"),
	supply("Heavyweight paper", CategoryPaper, "0.20"),
	supply("Standard copy paper", CategoryPaper, "0.04"),
	supply("Bright-colored paper", CategoryPaper, "0.12"),
	supply("Patterned paper", CategoryPaper, "0.15"),

	// Products, per unit
	supply("Paper plates", CategoryProduct, "0.10"),
	supply("Paper cups", CategoryProduct, "0.08"),
	supply("Paper napkins", CategoryProduct, "0.02"),
	supply("Disposable cups", CategoryProduct, "0.10"),
	supply("Table covers", CategoryProduct, "1.50"),
	supply("Envelopes", CategoryProduct, "0.05"),
	supply("Sticky notes", CategoryProduct, "0.03"),
	supply("Notepads", CategoryProduct, "2.00"),
	supply("Invitation cards", CategoryProduct, "0.50"),
	supply("Flyers", CategoryProduct, "0.15"),
	supply("Party streamers", CategoryProduct, "0.05"),
	supply("Decorative adhesive tape (washi tape)", CategoryProduct, "0.20"),
	supply("Paper party bags", CategoryProduct, "0.25"),
	supply("Name tags with lanyards", CategoryProduct, "0.75"),
	supply("Presentation folders", CategoryProduct, "0.50"),

	// Large format, per unit
	supply("Large poster paper (24x36 inches)", CategoryLargeFormat, "1.00"),
	supply("Rolls of banner paper (36-inch width)", CategoryLargeFormat, "2.50"),

	// Specialty
	supply("100 lb cover stock", CategorySpecialty, "0.50"),
	supply("80 lb text paper", CategorySpecialty, "0.40"),
	supply("250 gsm cardstock", CategorySpecialty, "0.30"),
	supply("220 gsm poster paper", CategorySpecialty, "0.35"),
}

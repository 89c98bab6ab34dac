package migration

import (
	catalogdomain "github.com/smartorder/smartorder/internal/catalog/domain"
	"github.com/smartorder/smartorder/internal/devicetoken"
	discountdomain "github.com/smartorder/smartorder/internal/discount/domain"
	orderdomain "github.com/smartorder/smartorder/internal/order/domain"
	paymentdomain "github.com/smartorder/smartorder/internal/payment/domain"
	"github.com/smartorder/smartorder/internal/queue"
	"github.com/smartorder/smartorder/internal/settings"
	"gorm.io/gorm"
)

// Run creates the schema on startup so local and self-hosted deployments
// work out of the box. Unique constraints carried by the models are part of
// the correctness story (queue numbers, idempotency keys, discount usage),
// not just data hygiene.
func Run(db *gorm.DB) error {
	return db.AutoMigrate(
		&catalogdomain.Product{},
		&discountdomain.Discount{},
		&discountdomain.Usage{},
		&queue.Counter{},
		&settings.Setting{},
		&devicetoken.DeviceToken{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&paymentdomain.EventRecord{},
	)
}

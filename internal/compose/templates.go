package compose

const (
	TemplateTracking     = "tracking"
	TemplateCustomerNote = "customer_note"
)

var defaultTemplates = map[string]string{
	"processing": "Hi *{customer_name}*! 👋\n\nYour order *#{order_number}* is being processed!\n\n" +
		"📦 *Items:*\n{products_list}\n\n🚚 *Shipping:* {shipping_method}\n💵 *Shipping cost:* {shipping_total}\n\n" +
		"💰 *Total:* {order_total}\n\n📅 *Date:* {order_date}\n\nWe will keep you posted!",
	"on-hold": "Hi *{customer_name}*! 👋\n\nYour order *#{order_number}* is awaiting payment.\n\n" +
		"📦 *Items:*\n{products_list}\n\n🚚 *Shipping:* {shipping_method}\n💵 *Shipping cost:* {shipping_total}\n\n" +
		"💰 *Total:* {order_total}\n\n📅 *Date:* {order_date}\n\nWe will start on your order as soon as the payment is confirmed.",
	"completed": "Hi *{customer_name}*! 🎉\n\nYour order *#{order_number}* is complete!\n\n" +
		"📦 *Items:*\n{products_list}\n\n🚚 *Shipping:* {shipping_method}\n💵 *Shipping cost:* {shipping_total}\n\n" +
		"💰 *Total:* {order_total}\n\n📅 *Date:* {order_date}\n\nThank you for shopping with us!",
	"cancelled": "Hi *{customer_name}*,\n\nUnfortunately your order *#{order_number}* was cancelled.\n\n" +
		"📦 *Items:*\n{products_list}\n\n🚚 *Shipping:* {shipping_method}\n💵 *Shipping cost:* {shipping_total}\n\n" +
		"💰 *Total:* {order_total}\n\n📅 *Date:* {order_date}\n\nReply to this message if you have any questions.",
	"refunded": "Hi *{customer_name}*,\n\nYour order *#{order_number}* was refunded.\n\n" +
		"📦 *Items:*\n{products_list}\n\n🚚 *Shipping:* {shipping_method}\n💵 *Shipping cost:* {shipping_total}\n\n" +
		"💰 *Total:* {order_total}\n\n📅 *Date:* {order_date}\n\nThe amount goes back through your original payment method.",
	TemplateTracking: "Hi *{customer_name}*! 📦\n\nYour order *#{order_number}* has shipped!\n\n" +
		"🚚 *Tracking code:*\n{tracking_code}\n\n🔗 *Track it:* {tracking_url}\n\n📦 *Items:*\n{products_list}\n\n" +
		"💰 *Total:* {order_total}\n\n📅 *Date:* {order_date}\n\nFollow your delivery!",
	TemplateCustomerNote: "Hi *{customer_name}*! 📝\n\nThere is a new note about your order *#{order_number}*:\n\n" +
		"{note_content}\n\n📦 *Order:* #{order_number}\n💰 *Total:* {order_total}\n📅 *Date:* {order_date}\n\n" +
		"Reply to this message if you have any questions.",
}

// DefaultTemplate returns the built-in template for a status or kind, or ""
// when there is none.
func DefaultTemplate(name string) string {
	return defaultTemplates[name]
}

var statusLabels = map[string]string{
	"processing": "Processing",
	"on-hold":    "Awaiting payment",
	"completed":  "Completed",
	"cancelled":  "Cancelled",
	"refunded":   "Refunded",
}

// StatusLabel is the human-readable status; unknown statuses render as is.
func StatusLabel(status string) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	return status
}

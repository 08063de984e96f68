package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/abodcard/storefront/internal/model"
)

// Тексты уведомлений. Пользовательские сообщения на арабском, как в продукте.

func msgPurchaseInstant(o *model.Order, redemption string) string {
	return fmt.Sprintf(`✅ *تم الشراء بنجاح!*

📦 المنتج: *%s*
🏷️ الفئة: *%s*
💰 السعر: *$%s*
🧾 رقم الطلب: `+"`%s`"+`

🎫 *الكود الخاص بك:*
`+"`%s`"+`

🔄 *طريقة الاسترداد:*
%s

شكراً لك لاستخدام خدماتنا! 🎉`,
		o.ProductName, o.CategoryName, o.Price.StringFixed(2), o.OrderNumber, o.CodeSent, redemption)
}

func msgPurchaseDelayed(o *model.Order) string {
	return fmt.Sprintf(`⏳ *تم استلام طلبك!*

📦 المنتج: *%s*
🏷️ الفئة: *%s*
💰 السعر: *$%s*
🧾 رقم الطلب: `+"`%s`"+`

⚠️ الأكواد نفدت مؤقتاً. سيتم تنفيذ طلبك يدوياً خلال 24 ساعة.
سيصلك إشعار فور توفر الكود.`,
		o.ProductName, o.CategoryName, o.Price.StringFixed(2), o.OrderNumber)
}

func msgPurchaseQueued(o *model.Order) string {
	text := fmt.Sprintf(`✅ *تم استلام طلبك بنجاح!*

📦 المنتج: *%s*
🏷️ الفئة: *%s*
💰 السعر: *$%s*
🧾 رقم الطلب: `+"`%s`",
		o.ProductName, o.CategoryName, o.Price.StringFixed(2), o.OrderNumber)
	if o.AdditionalInfo != "" {
		text += fmt.Sprintf("\n📝 البيانات: `%s`", o.AdditionalInfo)
	}
	text += "\n\n⏳ سيتم تنفيذ طلبك خلال 24 ساعة وإرسال التفاصيل إليك."
	return text
}

func msgOrderFulfilled(o *model.Order) string {
	return fmt.Sprintf(`✅ *تم تنفيذ طلبك!*

📦 المنتج: *%s*
🏷️ الفئة: *%s*
🧾 رقم الطلب: `+"`%s`"+`

🎫 *التفاصيل:*
`+"`%s`"+`

شكراً لك لاستخدام خدماتنا! 🎉`,
		o.ProductName, o.CategoryName, o.OrderNumber, o.CodeSent)
}

func msgTopUp(amount decimal.Decimal) string {
	return fmt.Sprintf("💰 تم شحن محفظتك بنجاح!\n\nالمبلغ المضاف: *%s دولار*", amount.StringFixed(2))
}

func msgAdminSale(o *model.Order) string {
	return fmt.Sprintf(`💳 *عملية بيع جديدة*

📦 المنتج: %s
🏷️ الفئة: %s
👤 المستخدم: %d
💰 السعر: $%s
🧾 رقم الطلب: %s`,
		o.ProductName, o.CategoryName, o.TelegramID, o.Price.StringFixed(2), o.OrderNumber)
}

func msgAdminOutOfStock(o *model.Order) string {
	return fmt.Sprintf(`🚨 *نفدت أكواد الفئة!*

📦 المنتج: %s
🏷️ الفئة: %s
👤 المستخدم: %d
💰 السعر: $%s
🧾 رقم الطلب: %s

⚠️ يرجى إضافة أكواد جديدة وتنفيذ الطلب يدوياً.`,
		o.ProductName, o.CategoryName, o.TelegramID, o.Price.StringFixed(2), o.OrderNumber)
}

func msgAdminManualOrder(o *model.Order) string {
	text := fmt.Sprintf(`📋 *طلب جديد يتطلب تنفيذ يدوي*

📦 المنتج: %s
🏷️ الفئة: %s
👤 المستخدم: %d
💰 السعر: $%s
🧾 رقم الطلب: %s`,
		o.ProductName, o.CategoryName, o.TelegramID, o.Price.StringFixed(2), o.OrderNumber)
	if o.AdditionalInfo != "" {
		text += fmt.Sprintf("\n📝 البيانات: %s", o.AdditionalInfo)
	}
	text += "\n\nيرجى تنفيذ الطلب وإرسال التفاصيل للمستخدم."
	return text
}

func msgAdminFulfilled(o *model.Order) string {
	return fmt.Sprintf("✅ تم تنفيذ الطلب %s وإرسال التفاصيل للمستخدم %d", o.OrderNumber, o.TelegramID)
}

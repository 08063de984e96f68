package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/abodcard/storefront/internal/model"
	"github.com/abodcard/storefront/internal/repository"
	"github.com/abodcard/storefront/internal/service"
	"github.com/abodcard/storefront/internal/session"
	"github.com/abodcard/storefront/internal/validation"
)

// Действия покупательского бота.
const (
	actionMainMenu       = "main_menu"
	actionBrowseProducts = "browse_products"
	actionViewWallet     = "view_wallet"
	actionTopUpWallet    = "topup_wallet"
	actionSupport        = "support"
	actionOrderHistory   = "order_history"

	prefixProduct      = "product_"
	prefixCategory     = "category_"
	prefixBuyCategory  = "buy_category_"
	prefixOrderDetails = "order_details_"
)

// Состояния покупательских сессий.
const (
	stateTopUpAmount       = "wallet_topup_amount"
	statePurchaseInputPref = "purchase_input_"
	sessionKeyCategoryID   = "category_id"
	sessionKeyCategoryName = "category_name"
)

const supportContact = "@AbodStoreVIP"

// CustomerBot — Telegram-адаптер покупательской стороны.
type CustomerBot struct {
	api      *tgbotapi.BotAPI
	svc      *service.Service
	sessions *session.Manager
	logger   *zap.Logger
	routes   *dispatcher
}

// NewCustomerBot создаёт покупательский бот и регистрирует таблицу действий.
func NewCustomerBot(api *tgbotapi.BotAPI, svc *service.Service, sessions *session.Manager, logger *zap.Logger) *CustomerBot {
	b := &CustomerBot{
		api:      api,
		svc:      svc,
		sessions: sessions,
		logger:   logger,
		routes:   newDispatcher(),
	}

	b.routes.on(actionMainMenu, b.showMainMenu)
	b.routes.on(actionBrowseProducts, b.browseProducts)
	b.routes.on(actionViewWallet, b.viewWallet)
	b.routes.on(actionTopUpWallet, b.startTopUp)
	b.routes.on(actionSupport, b.showSupport)
	b.routes.on(actionOrderHistory, b.orderHistory)
	b.routes.onPrefix(prefixBuyCategory, b.buyCategory)
	b.routes.onPrefix(prefixOrderDetails, b.orderDetails)
	b.routes.onPrefix(prefixProduct, b.showProduct)
	b.routes.onPrefix(prefixCategory, b.showCategory)

	return b
}

// Run запускает long polling до отмены контекста.
func (b *CustomerBot) Run(ctx context.Context) error {
	return runUpdates(ctx, b.api, b.logger, b.handleUpdate)
}

func (b *CustomerBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		answerCallback(b.api, b.logger, update.CallbackQuery.ID)
		chatID := update.CallbackQuery.Message.Chat.ID
		if !b.routes.dispatch(ctx, chatID, update.CallbackQuery.Data) {
			b.logger.Warn("unknown callback", zap.String("data", update.CallbackQuery.Data))
		}
	}
}

func (b *CustomerBot) send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	send(b.api, b.logger, chatID, text, keyboard)
}

func (b *CustomerBot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.Text == "/start" {
		if _, err := b.svc.EnsureUser(ctx, chatID, msg.From.UserName, msg.From.FirstName); err != nil {
			b.logger.Error("ensure user", zap.Int64("telegram_id", chatID), zap.Error(err))
			return
		}
		b.send(chatID, welcomeText, mainMenuKeyboard())
		_ = b.sessions.Clear(ctx, chatID, model.RoleCustomer)
		return
	}

	sess, err := b.sessions.Get(ctx, chatID, model.RoleCustomer)
	if err != nil {
		b.logger.Error("get session", zap.Int64("telegram_id", chatID), zap.Error(err))
		return
	}
	if sess == nil {
		b.send(chatID, "اختر من الخيارات التالية:", mainMenuKeyboard())
		return
	}

	switch {
	case sess.State == stateTopUpAmount:
		b.finishTopUpRequest(ctx, chatID, msg.Text)
	case strings.HasPrefix(sess.State, statePurchaseInputPref):
		b.finishPurchaseInput(ctx, chatID, msg.Text, sess)
	default:
		b.send(chatID, "اختر من الخيارات التالية:", mainMenuKeyboard())
	}
}

const welcomeText = `🎉 مرحبًا بك في بوت "Abod Card"! 🎉

أنت الآن في المكان الصحيح لشراء المنتجات الرقمية والاشتراكات الرقمية والبطاقات!

✨ اختر من الخيارات أدناه للبدء! ✨`

func (b *CustomerBot) showMainMenu(ctx context.Context, chatID int64, _ string) {
	_ = b.sessions.Clear(ctx, chatID, model.RoleCustomer)
	b.send(chatID, "اختر من الخيارات التالية:", mainMenuKeyboard())
}

func (b *CustomerBot) browseProducts(ctx context.Context, chatID int64, _ string) {
	products, err := b.svc.ListProducts(ctx, true)
	if err != nil {
		b.logger.Error("list products", zap.Error(err))
		return
	}
	if len(products) == 0 {
		b.send(chatID, "❌ لا توجد منتجات متاحة حالياً", backToMenuKeyboard())
		return
	}

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, p := range products {
		buttons = append(buttons, row(p.Name, prefixProduct+p.ID))
	}
	buttons = append(buttons, row("🔙 العودة للقائمة الرئيسية", actionMainMenu))

	b.send(chatID, "🛒 *المنتجات المتاحة:*\n\nاختر المنتج الذي تريده:", rows(buttons...))
}

func (b *CustomerBot) showProduct(ctx context.Context, chatID int64, productID string) {
	categories, err := b.svc.ListCategories(ctx, productID, true)
	if err != nil {
		b.logger.Error("list categories", zap.Error(err))
		return
	}
	if len(categories) == 0 {
		b.send(chatID, "❌ لا توجد فئات متاحة لهذا المنتج", backToMenuKeyboard())
		return
	}

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, c := range categories {
		label := fmt.Sprintf("%s - $%s", c.Name, c.Price.StringFixed(2))
		buttons = append(buttons, row(label, prefixCategory+c.ID))
	}
	buttons = append(buttons, row("🔙 العودة للمنتجات", actionBrowseProducts))

	b.send(chatID, "*الفئات المتاحة:*", rows(buttons...))
}

func (b *CustomerBot) showCategory(ctx context.Context, chatID int64, categoryID string) {
	category, product, err := b.svc.GetCategory(ctx, categoryID)
	if err != nil {
		b.send(chatID, "❌ الفئة غير موجودة", backToMenuKeyboard())
		return
	}
	user, err := b.svc.GetUser(ctx, chatID)
	if err != nil {
		b.logger.Error("get user", zap.Int64("telegram_id", chatID), zap.Error(err))
		return
	}

	text := fmt.Sprintf(`🏷️ *%s*

📝 الوصف: %s
💰 السعر: *$%s*
🔄 طريقة الاسترداد: %s

💳 رصيدك الحالي: *$%s*`,
		category.Name, category.Description, category.Price.StringFixed(2),
		category.RedemptionMethod, user.Balance.StringFixed(2))

	var buttons [][]tgbotapi.InlineKeyboardButton
	if user.Balance.GreaterThanOrEqual(category.Price) {
		label := fmt.Sprintf("🛒 شراء بـ $%s", category.Price.StringFixed(2))
		buttons = append(buttons, row(label, prefixBuyCategory+categoryID))
	} else {
		buttons = append(buttons, row("❌ رصيد غير كافي", actionTopUpWallet))
	}
	buttons = append(buttons, row("🔙 العودة", prefixProduct+product.ID))

	b.send(chatID, text, rows(buttons...))
}

// buyCategory запускает покупку. Для категорий, требующих данные покупателя,
// движок возвращает ErrDeliveryInfoRequired — тогда открывается сессия сбора
// ввода, и покупка повторяется после следующего сообщения.
func (b *CustomerBot) buyCategory(ctx context.Context, chatID int64, categoryID string) {
	_, err := b.svc.Purchase(ctx, chatID, categoryID, "")
	if err == nil {
		// Движок сам уведомил покупателя о результате.
		b.send(chatID, "📋 يمكنك متابعة طلباتك من القائمة.", backToMenuKeyboard())
		return
	}

	if errors.Is(err, service.ErrDeliveryInfoRequired) {
		b.collectDeliveryInfo(ctx, chatID, categoryID)
		return
	}
	b.sendPurchaseError(chatID, err)
}

func (b *CustomerBot) collectDeliveryInfo(ctx context.Context, chatID int64, categoryID string) {
	category, _, err := b.svc.GetCategory(ctx, categoryID)
	if err != nil {
		b.send(chatID, "❌ الفئة غير موجودة", backToMenuKeyboard())
		return
	}

	state := statePurchaseInputPref + string(category.DeliveryType)
	err = b.sessions.Set(ctx, chatID, model.RoleCustomer, state, map[string]string{
		sessionKeyCategoryID:   categoryID,
		sessionKeyCategoryName: category.Name,
	})
	if err != nil {
		b.logger.Error("save session", zap.Int64("telegram_id", chatID), zap.Error(err))
		return
	}

	b.send(chatID, deliveryPrompt(category.DeliveryType), cancelKeyboard(actionMainMenu))
}

func deliveryPrompt(d model.DeliveryType) string {
	switch d {
	case model.DeliveryPhone:
		return "📝 *معلومات إضافية مطلوبة*\n\n📱 أدخل رقم هاتفك:"
	case model.DeliveryEmail:
		return "📝 *معلومات إضافية مطلوبة*\n\n📧 أدخل بريدك الإلكتروني:"
	default:
		return "📝 *معلومات إضافية مطلوبة*\n\n🆔 أدخل إيدي حسابك:"
	}
}

func (b *CustomerBot) finishPurchaseInput(ctx context.Context, chatID int64, text string, sess *model.Session) {
	categoryID := sess.Data[sessionKeyCategoryID]
	if categoryID == "" {
		_ = b.sessions.Clear(ctx, chatID, model.RoleCustomer)
		b.send(chatID, "❌ انتهت الجلسة. يرجى البدء مرة أخرى.", backToMenuKeyboard())
		return
	}

	_, err := b.svc.Purchase(ctx, chatID, categoryID, text)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			// Неверный формат: сессия остаётся, покупатель пробует ещё раз.
			b.send(chatID, "❌ البيانات غير صحيحة، حاول مرة أخرى:", cancelKeyboard(actionMainMenu))
			return
		}
		_ = b.sessions.Clear(ctx, chatID, model.RoleCustomer)
		b.sendPurchaseError(chatID, err)
		return
	}

	_ = b.sessions.Clear(ctx, chatID, model.RoleCustomer)
}

func (b *CustomerBot) sendPurchaseError(chatID int64, err error) {
	switch {
	case errors.Is(err, repository.ErrInsufficientBalance):
		b.send(chatID, "❌ رصيد غير كافي", rows(
			row("💳 شحن المحفظة", actionTopUpWallet),
			row("🔙 العودة للقائمة الرئيسية", actionMainMenu),
		))
	case errors.Is(err, service.ErrUserBanned):
		b.send(chatID, "🚫 حسابك محظور. تواصل مع الدعم: "+supportContact, backToMenuKeyboard())
	case errors.Is(err, service.ErrCategoryInactive), errors.Is(err, repository.ErrCategoryNotFound):
		b.send(chatID, "❌ هذه الفئة لم تعد متاحة", backToMenuKeyboard())
	default:
		b.logger.Error("purchase", zap.Int64("telegram_id", chatID), zap.Error(err))
		b.send(chatID, "❌ حدث خطأ، حاول لاحقاً", backToMenuKeyboard())
	}
}

func (b *CustomerBot) viewWallet(ctx context.Context, chatID int64, _ string) {
	user, err := b.svc.GetUser(ctx, chatID)
	if err != nil {
		b.logger.Error("get user", zap.Int64("telegram_id", chatID), zap.Error(err))
		return
	}

	text := fmt.Sprintf(`💰 *محفظتك الرقمية*

الرصيد الحالي: *%s دولار*
عدد الطلبات: *%d*`,
		user.Balance.StringFixed(2), user.OrdersCount)

	b.send(chatID, text, rows(
		row("💳 شحن المحفظة", actionTopUpWallet),
		row("🔙 العودة للقائمة الرئيسية", actionMainMenu),
	))
}

func (b *CustomerBot) startTopUp(ctx context.Context, chatID int64, _ string) {
	if err := b.sessions.Set(ctx, chatID, model.RoleCustomer, stateTopUpAmount, nil); err != nil {
		b.logger.Error("save session", zap.Int64("telegram_id", chatID), zap.Error(err))
		return
	}
	b.send(chatID, "💳 *شحن المحفظة*\n\nيرجى إدخال المبلغ الذي تريد شحنه (بالدولار):\n\nمثال: 50", cancelKeyboard(actionMainMenu))
}

func (b *CustomerBot) finishTopUpRequest(ctx context.Context, chatID int64, text string) {
	amount, ok := validation.ParseAmount(text)
	if !ok {
		b.send(chatID, "❌ يرجى إدخال رقم صحيح", cancelKeyboard(actionMainMenu))
		return
	}

	// Пополнение зачисляет администратор; бот только формирует заявку.
	reply := fmt.Sprintf(`💰 *طلب شحن المحفظة*

المبلغ المطلوب: *%s دولار*

للشحن، يرجى التواصل مع الإدارة على:
%s

أرسل لهم هذا المبلغ وإيدي حسابك: `+"`%d`",
		amount.StringFixed(2), supportContact, chatID)

	b.send(chatID, reply, backToMenuKeyboard())
	_ = b.sessions.Clear(ctx, chatID, model.RoleCustomer)
}

func (b *CustomerBot) showSupport(_ context.Context, chatID int64, _ string) {
	b.send(chatID, "📞 *الدعم الفني*\n\nللحصول على المساعدة، يرجى التواصل مع فريق الدعم:\n"+supportContact, backToMenuKeyboard())
}

func (b *CustomerBot) orderHistory(ctx context.Context, chatID int64, _ string) {
	orders, err := b.svc.ListOrdersByUser(ctx, chatID, 10)
	if err != nil {
		b.logger.Error("list orders", zap.Int64("telegram_id", chatID), zap.Error(err))
		return
	}
	if len(orders) == 0 {
		b.send(chatID, "📋 لا توجد طلبات سابقة", backToMenuKeyboard())
		return
	}

	text := "📋 *تاريخ طلباتك:*\n\n"
	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, o := range orders {
		text += fmt.Sprintf("%d. %s %s - %s\n   💰 %s دولار - %s\n\n",
			i+1, statusEmoji(o.Status), o.ProductName, o.CategoryName,
			o.Price.StringFixed(2), o.OrderDate.Format("2006-01-02"))
		buttons = append(buttons, row(fmt.Sprintf("📋 طلب %s", o.OrderNumber), prefixOrderDetails+o.ID))
	}
	buttons = append(buttons, row("🔙 العودة للقائمة الرئيسية", actionMainMenu))

	b.send(chatID, text, rows(buttons...))
}

func statusEmoji(s model.OrderStatus) string {
	switch s {
	case model.OrderStatusCompleted:
		return "✅"
	case model.OrderStatusPending:
		return "⏳"
	default:
		return "❌"
	}
}

func (b *CustomerBot) orderDetails(ctx context.Context, chatID int64, orderID string) {
	order, err := b.svc.GetOrderForCustomer(ctx, orderID, chatID)
	if err != nil {
		b.send(chatID, "❌ الطلب غير موجود", backToMenuKeyboard())
		return
	}

	text := fmt.Sprintf(`📋 *تفاصيل الطلب %s*

📦 المنتج: *%s*
🏷️ الفئة: *%s*
💰 السعر: *$%s*
📅 تاريخ الطلب: %s
🔄 الحالة: %s

`,
		order.OrderNumber, order.ProductName, order.CategoryName,
		order.Price.StringFixed(2), order.OrderDate.Format("2006-01-02 15:04"), statusEmoji(order.Status))

	if order.CodeSent != "" {
		text += fmt.Sprintf("🎫 *الكود:*\n`%s`", order.CodeSent)
	} else {
		text += "⏳ الكود لم يتم إرساله بعد. سيصلك إشعار فور توفره."
	}

	b.send(chatID, text, backToMenuKeyboard())
}

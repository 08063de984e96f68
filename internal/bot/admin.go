package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/abodcard/storefront/internal/codes"
	"github.com/abodcard/storefront/internal/model"
	"github.com/abodcard/storefront/internal/repository"
	"github.com/abodcard/storefront/internal/service"
	"github.com/abodcard/storefront/internal/session"
	"github.com/abodcard/storefront/internal/validation"
)

// Действия админского бота.
const (
	actionAdminMainMenu  = "admin_main_menu"
	actionManageProducts = "manage_products"
	actionManageUsers    = "manage_users"
	actionManageCodes    = "manage_codes"
	actionManageOrders   = "manage_orders"
	actionReports        = "reports"

	actionAddProduct    = "add_product"
	actionListUsers     = "list_users"
	actionCreditBalance = "credit_balance"
	actionBanUser       = "ban_user"
	actionUnbanUser     = "unban_user"
	actionAddCodes      = "add_codes"
	actionStockReport   = "stock_report"
	actionLowStock      = "low_stock"
	actionSalesReport   = "sales_report"
	actionPendingOrders = "pending_orders"

	prefixAdminProduct      = "adm_product_"
	prefixAddCategory       = "add_category_"
	prefixDeactivateProduct = "deactivate_product_"
	prefixDeliveryType      = "delivery_"
	prefixCodesCategory     = "codes_category_"
	prefixCodeType          = "codetype_"
	prefixProcessOrder      = "process_order_"
)

// Состояния админских сессий.
const (
	stateProductName    = "product_name"
	stateProductDesc    = "product_description"
	stateProductTerms   = "product_terms"
	stateCategoryName   = "category_name"
	stateCategoryDesc   = "category_description"
	stateCategoryPrice  = "category_price"
	stateCategoryRedeem = "category_redemption"
	stateCodesInput     = "codes_input"
	stateCreditUserID   = "credit_user_id"
	stateCreditAmount   = "credit_amount"
	stateBanUserID      = "ban_user_id"
	stateBanReason      = "ban_reason"
	stateUnbanUserID    = "unban_user_id"
	stateFulfillValue   = "fulfill_value"
)

// AdminBot — Telegram-адаптер административной стороны.
// Любые апдейты от чатов вне списка adminIDs игнорируются.
type AdminBot struct {
	api      *tgbotapi.BotAPI
	svc      *service.Service
	sessions *session.Manager
	adminIDs map[int64]struct{}
	logger   *zap.Logger
	routes   *dispatcher
}

// NewAdminBot создаёт админский бот и регистрирует таблицу действий.
func NewAdminBot(api *tgbotapi.BotAPI, svc *service.Service, sessions *session.Manager, adminChatIDs []int64, logger *zap.Logger) *AdminBot {
	ids := make(map[int64]struct{}, len(adminChatIDs))
	for _, id := range adminChatIDs {
		ids[id] = struct{}{}
	}

	b := &AdminBot{
		api:      api,
		svc:      svc,
		sessions: sessions,
		adminIDs: ids,
		logger:   logger,
		routes:   newDispatcher(),
	}

	b.routes.on(actionAdminMainMenu, b.showMainMenu)
	b.routes.on(actionManageProducts, b.manageProducts)
	b.routes.on(actionManageUsers, b.manageUsers)
	b.routes.on(actionManageCodes, b.manageCodes)
	b.routes.on(actionManageOrders, b.manageOrders)
	b.routes.on(actionReports, b.showReports)

	b.routes.on(actionAddProduct, b.startAddProduct)
	b.routes.on(actionListUsers, b.listUsers)
	b.routes.on(actionCreditBalance, b.startCreditBalance)
	b.routes.on(actionBanUser, b.startBanUser)
	b.routes.on(actionUnbanUser, b.startUnbanUser)
	b.routes.on(actionAddCodes, b.chooseCodesCategory)
	b.routes.on(actionStockReport, b.stockReport)
	b.routes.on(actionLowStock, b.lowStockReport)
	b.routes.on(actionSalesReport, b.salesReport)
	b.routes.on(actionPendingOrders, b.pendingOrders)

	b.routes.onPrefix(prefixAdminProduct, b.showProduct)
	b.routes.onPrefix(prefixAddCategory, b.startAddCategory)
	b.routes.onPrefix(prefixDeactivateProduct, b.deactivateProduct)
	b.routes.onPrefix(prefixDeliveryType, b.pickDeliveryType)
	b.routes.onPrefix(prefixCodesCategory, b.pickCodesCategory)
	b.routes.onPrefix(prefixCodeType, b.pickCodeType)
	b.routes.onPrefix(prefixProcessOrder, b.startProcessOrder)

	return b
}

// Run запускает long polling до отмены контекста.
func (b *AdminBot) Run(ctx context.Context) error {
	return runUpdates(ctx, b.api, b.logger, b.handleUpdate)
}

func (b *AdminBot) authorized(chatID int64) bool {
	_, ok := b.adminIDs[chatID]
	return ok
}

func (b *AdminBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		if !b.authorized(update.Message.Chat.ID) {
			b.logger.Warn("unauthorized admin message", zap.Int64("chat_id", update.Message.Chat.ID))
			return
		}
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		answerCallback(b.api, b.logger, update.CallbackQuery.ID)
		chatID := update.CallbackQuery.Message.Chat.ID
		if !b.authorized(chatID) {
			b.logger.Warn("unauthorized admin callback", zap.Int64("chat_id", chatID))
			return
		}
		if !b.routes.dispatch(ctx, chatID, update.CallbackQuery.Data) {
			b.logger.Warn("unknown admin callback", zap.String("data", update.CallbackQuery.Data))
		}
	}
}

func (b *AdminBot) send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	send(b.api, b.logger, chatID, text, keyboard)
}

func (b *AdminBot) setSession(ctx context.Context, chatID int64, state string, data map[string]string) bool {
	if err := b.sessions.Set(ctx, chatID, model.RoleAdmin, state, data); err != nil {
		b.logger.Error("save admin session", zap.Int64("chat_id", chatID), zap.Error(err))
		return false
	}
	return true
}

func (b *AdminBot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.Text == "/start" {
		_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
		b.send(chatID, "🛠️ *لوحة تحكم الإدارة*\n\nاختر القسم:", adminMenuKeyboard())
		return
	}

	sess, err := b.sessions.Get(ctx, chatID, model.RoleAdmin)
	if err != nil {
		b.logger.Error("get admin session", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	if sess == nil {
		b.send(chatID, "اختر القسم:", adminMenuKeyboard())
		return
	}

	b.continueFlow(ctx, chatID, strings.TrimSpace(msg.Text), sess)
}

// continueFlow продвигает многошаговый диалог на один шаг по текущему состоянию сессии.
func (b *AdminBot) continueFlow(ctx context.Context, chatID int64, text string, sess *model.Session) {
	switch sess.State {
	case stateProductName:
		sess.Data["name"] = text
		if b.setSession(ctx, chatID, stateProductDesc, sess.Data) {
			b.send(chatID, "📝 أدخل وصف المنتج:", cancelKeyboard(actionAdminMainMenu))
		}
	case stateProductDesc:
		sess.Data["description"] = text
		if b.setSession(ctx, chatID, stateProductTerms, sess.Data) {
			b.send(chatID, "📜 أدخل شروط الاستخدام (أو - لتخطي):", cancelKeyboard(actionAdminMainMenu))
		}
	case stateProductTerms:
		b.finishAddProduct(ctx, chatID, text, sess)

	case stateCategoryName:
		sess.Data["name"] = text
		if b.setSession(ctx, chatID, stateCategoryDesc, sess.Data) {
			b.send(chatID, "📝 أدخل وصف الفئة:", cancelKeyboard(actionAdminMainMenu))
		}
	case stateCategoryDesc:
		sess.Data["description"] = text
		b.askDeliveryType(ctx, chatID, sess)
	case stateCategoryPrice:
		b.readCategoryPrice(ctx, chatID, text, sess)
	case stateCategoryRedeem:
		b.finishAddCategory(ctx, chatID, text, sess)

	case stateCodesInput:
		b.finishAddCodes(ctx, chatID, text, sess)

	case stateCreditUserID:
		b.readCreditUserID(ctx, chatID, text, sess)
	case stateCreditAmount:
		b.finishCreditBalance(ctx, chatID, text, sess)

	case stateBanUserID:
		sess.Data["telegram_id"] = text
		if b.setSession(ctx, chatID, stateBanReason, sess.Data) {
			b.send(chatID, "📝 أدخل سبب الحظر:", cancelKeyboard(actionAdminMainMenu))
		}
	case stateBanReason:
		b.finishBanUser(ctx, chatID, text, sess)
	case stateUnbanUserID:
		b.finishUnbanUser(ctx, chatID, text)

	case stateFulfillValue:
		b.finishProcessOrder(ctx, chatID, text, sess)

	default:
		_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
		b.send(chatID, "اختر القسم:", adminMenuKeyboard())
	}
}

func (b *AdminBot) showMainMenu(ctx context.Context, chatID int64, _ string) {
	_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
	b.send(chatID, "🛠️ *لوحة تحكم الإدارة*\n\nاختر القسم:", adminMenuKeyboard())
}

// --- Продукты и категории ---

func (b *AdminBot) manageProducts(ctx context.Context, chatID int64, _ string) {
	products, err := b.svc.ListProducts(ctx, false)
	if err != nil {
		b.logger.Error("list products", zap.Error(err))
		return
	}

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, p := range products {
		label := p.Name
		if !p.IsActive {
			label += " (معطل)"
		}
		buttons = append(buttons, row("📦 "+label, prefixAdminProduct+p.ID))
	}
	buttons = append(buttons,
		row("➕ إضافة منتج جديد", actionAddProduct),
		row("🔙 العودة", actionAdminMainMenu),
	)

	b.send(chatID, "📦 *إدارة المنتجات*", rows(buttons...))
}

func (b *AdminBot) showProduct(ctx context.Context, chatID int64, productID string) {
	categories, err := b.svc.ListCategories(ctx, productID, false)
	if err != nil {
		b.logger.Error("list categories", zap.Error(err))
		return
	}

	text := "🏷️ *فئات المنتج:*\n\n"
	if len(categories) == 0 {
		text += "لا توجد فئات بعد.\n"
	}
	for _, c := range categories {
		text += fmt.Sprintf("• %s — $%s (%s)\n", c.Name, c.Price.StringFixed(2), c.DeliveryType)
	}

	b.send(chatID, text, rows(
		row("➕ إضافة فئة", prefixAddCategory+productID),
		row("🗑️ تعطيل المنتج", prefixDeactivateProduct+productID),
		row("🔙 العودة", actionManageProducts),
	))
}

func (b *AdminBot) startAddProduct(ctx context.Context, chatID int64, _ string) {
	if b.setSession(ctx, chatID, stateProductName, nil) {
		b.send(chatID, "📦 *إضافة منتج جديد*\n\nأدخل اسم المنتج:", cancelKeyboard(actionAdminMainMenu))
	}
}

func (b *AdminBot) finishAddProduct(ctx context.Context, chatID int64, terms string, sess *model.Session) {
	if terms == "-" {
		terms = ""
	}
	p := &model.Product{
		Name:         sess.Data["name"],
		Description:  sess.Data["description"],
		Terms:        terms,
		CategoryType: model.CategoryTypeGeneral,
		IsActive:     true,
	}
	if err := b.svc.CreateProduct(ctx, p); err != nil {
		b.logger.Error("create product", zap.Error(err))
		b.send(chatID, "❌ فشل في إضافة المنتج", adminBackKeyboard())
		return
	}
	_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
	b.send(chatID, fmt.Sprintf("✅ تم إضافة المنتج *%s* بنجاح!", p.Name), adminBackKeyboard())
}

func (b *AdminBot) deactivateProduct(ctx context.Context, chatID int64, productID string) {
	if err := b.svc.DeactivateProduct(ctx, productID); err != nil {
		b.logger.Error("deactivate product", zap.Error(err))
		b.send(chatID, "❌ فشل في تعطيل المنتج", adminBackKeyboard())
		return
	}
	b.send(chatID, "✅ تم تعطيل المنتج وجميع فئاته", adminBackKeyboard())
}

func (b *AdminBot) startAddCategory(ctx context.Context, chatID int64, productID string) {
	data := map[string]string{"product_id": productID}
	if b.setSession(ctx, chatID, stateCategoryName, data) {
		b.send(chatID, "🏷️ *إضافة فئة جديدة*\n\nأدخل اسم الفئة:", cancelKeyboard(actionAdminMainMenu))
	}
}

func (b *AdminBot) askDeliveryType(ctx context.Context, chatID int64, sess *model.Session) {
	if !b.setSession(ctx, chatID, stateCategoryDesc, sess.Data) {
		return
	}
	b.send(chatID, "🚚 اختر طريقة التسليم:", rows(
		row("🎫 كود تلقائي", prefixDeliveryType+string(model.DeliveryCode)),
		row("📱 رقم هاتف", prefixDeliveryType+string(model.DeliveryPhone)),
		row("📧 بريد إلكتروني", prefixDeliveryType+string(model.DeliveryEmail)),
		row("🆔 إيدي حساب", prefixDeliveryType+string(model.DeliveryAccountID)),
		row("🖐️ يدوي", prefixDeliveryType+string(model.DeliveryManual)),
	))
}

func (b *AdminBot) pickDeliveryType(ctx context.Context, chatID int64, deliveryType string) {
	sess, err := b.sessions.Get(ctx, chatID, model.RoleAdmin)
	if err != nil || sess == nil {
		b.send(chatID, "❌ انتهت الجلسة. ابدأ من جديد.", adminBackKeyboard())
		return
	}
	sess.Data["delivery_type"] = deliveryType
	if b.setSession(ctx, chatID, stateCategoryPrice, sess.Data) {
		b.send(chatID, "💰 أدخل سعر الفئة بالدولار:", cancelKeyboard(actionAdminMainMenu))
	}
}

func (b *AdminBot) readCategoryPrice(ctx context.Context, chatID int64, text string, sess *model.Session) {
	price, ok := validation.ParseAmount(text)
	if !ok {
		b.send(chatID, "❌ سعر غير صحيح، أدخل رقماً موجباً:", cancelKeyboard(actionAdminMainMenu))
		return
	}
	sess.Data["price"] = price.String()
	if b.setSession(ctx, chatID, stateCategoryRedeem, sess.Data) {
		b.send(chatID, "🔄 أدخل طريقة الاسترداد (تعليمات للمشتري):", cancelKeyboard(actionAdminMainMenu))
	}
}

func (b *AdminBot) finishAddCategory(ctx context.Context, chatID int64, redemption string, sess *model.Session) {
	price, ok := validation.ParseAmount(sess.Data["price"])
	if !ok {
		_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
		b.send(chatID, "❌ بيانات الجلسة تالفة، ابدأ من جديد", adminBackKeyboard())
		return
	}

	c := &model.Category{
		ProductID:        sess.Data["product_id"],
		Name:             sess.Data["name"],
		Description:      sess.Data["description"],
		CategoryType:     model.CategoryTypeGeneral,
		Price:            price,
		DeliveryType:     model.DeliveryType(sess.Data["delivery_type"]),
		RedemptionMethod: redemption,
		IsActive:         true,
	}
	if err := b.svc.CreateCategory(ctx, c); err != nil {
		b.logger.Error("create category", zap.Error(err))
		b.send(chatID, "❌ فشل في إضافة الفئة", adminBackKeyboard())
		return
	}
	_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
	b.send(chatID, fmt.Sprintf("✅ تم إضافة الفئة *%s* — $%s", c.Name, c.Price.StringFixed(2)), adminBackKeyboard())
}

// --- Пользователи ---

func (b *AdminBot) manageUsers(ctx context.Context, chatID int64, _ string) {
	b.send(chatID, "👥 *إدارة المستخدمين*", rows(
		row("📋 عرض المستخدمين", actionListUsers),
		row("💰 إضافة رصيد", actionCreditBalance),
		row("🚫 حظر مستخدم", actionBanUser),
		row("✅ إلغاء الحظر", actionUnbanUser),
		row("🔙 العودة", actionAdminMainMenu),
	))
}

func (b *AdminBot) listUsers(ctx context.Context, chatID int64, _ string) {
	users, err := b.svc.ListUsers(ctx, 20)
	if err != nil {
		b.logger.Error("list users", zap.Error(err))
		return
	}
	if len(users) == 0 {
		b.send(chatID, "لا يوجد مستخدمون بعد", adminBackKeyboard())
		return
	}

	text := "👥 *آخر المستخدمين:*\n\n"
	for _, u := range users {
		flag := ""
		if u.IsBanned {
			flag = " 🚫"
		}
		text += fmt.Sprintf("`%d` @%s — $%s (%d طلب)%s\n",
			u.TelegramID, u.Username, u.Balance.StringFixed(2), u.OrdersCount, flag)
	}
	b.send(chatID, text, adminBackKeyboard())
}

func (b *AdminBot) startCreditBalance(ctx context.Context, chatID int64, _ string) {
	if b.setSession(ctx, chatID, stateCreditUserID, nil) {
		b.send(chatID, "💰 *إضافة رصيد*\n\nأدخل إيدي المستخدم (Telegram ID):", cancelKeyboard(actionAdminMainMenu))
	}
}

func (b *AdminBot) readCreditUserID(ctx context.Context, chatID int64, text string, sess *model.Session) {
	if _, err := strconv.ParseInt(text, 10, 64); err != nil {
		b.send(chatID, "❌ إيدي غير صحيح، أدخل رقماً:", cancelKeyboard(actionAdminMainMenu))
		return
	}
	sess.Data["telegram_id"] = text
	if b.setSession(ctx, chatID, stateCreditAmount, sess.Data) {
		b.send(chatID, "💵 أدخل المبلغ بالدولار:", cancelKeyboard(actionAdminMainMenu))
	}
}

func (b *AdminBot) finishCreditBalance(ctx context.Context, chatID int64, text string, sess *model.Session) {
	amount, ok := validation.ParseAmount(text)
	if !ok {
		b.send(chatID, "❌ مبلغ غير صحيح، أدخل رقماً موجباً:", cancelKeyboard(actionAdminMainMenu))
		return
	}
	telegramID, err := strconv.ParseInt(sess.Data["telegram_id"], 10, 64)
	if err != nil {
		_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
		b.send(chatID, "❌ بيانات الجلسة تالفة، ابدأ من جديد", adminBackKeyboard())
		return
	}

	if err := b.svc.TopUpBalance(ctx, telegramID, amount, ""); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			b.send(chatID, "❌ المستخدم غير موجود", adminBackKeyboard())
		} else {
			b.logger.Error("credit balance", zap.Error(err))
			b.send(chatID, "❌ فشل في إضافة الرصيد", adminBackKeyboard())
		}
		_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
		return
	}

	_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
	b.send(chatID, fmt.Sprintf("✅ تم إضافة *%s دولار* للمستخدم `%d`", amount.StringFixed(2), telegramID), adminBackKeyboard())
}

func (b *AdminBot) startBanUser(ctx context.Context, chatID int64, _ string) {
	if b.setSession(ctx, chatID, stateBanUserID, nil) {
		b.send(chatID, "🚫 *حظر مستخدم*\n\nأدخل إيدي المستخدم:", cancelKeyboard(actionAdminMainMenu))
	}
}

func (b *AdminBot) finishBanUser(ctx context.Context, chatID int64, reason string, sess *model.Session) {
	telegramID, err := strconv.ParseInt(sess.Data["telegram_id"], 10, 64)
	if err != nil {
		b.send(chatID, "❌ إيدي غير صحيح", adminBackKeyboard())
		_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
		return
	}
	if err := b.svc.BanUser(ctx, telegramID, reason); err != nil {
		b.logger.Error("ban user", zap.Error(err))
		b.send(chatID, "❌ فشل في حظر المستخدم", adminBackKeyboard())
		_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
		return
	}
	_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
	b.send(chatID, fmt.Sprintf("🚫 تم حظر المستخدم `%d`", telegramID), adminBackKeyboard())
}

func (b *AdminBot) startUnbanUser(ctx context.Context, chatID int64, _ string) {
	if b.setSession(ctx, chatID, stateUnbanUserID, nil) {
		b.send(chatID, "✅ *إلغاء الحظر*\n\nأدخل إيدي المستخدم:", cancelKeyboard(actionAdminMainMenu))
	}
}

func (b *AdminBot) finishUnbanUser(ctx context.Context, chatID int64, text string) {
	telegramID, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		b.send(chatID, "❌ إيدي غير صحيح، أدخل رقماً:", cancelKeyboard(actionAdminMainMenu))
		return
	}
	if err := b.svc.UnbanUser(ctx, telegramID); err != nil {
		b.logger.Error("unban user", zap.Error(err))
		b.send(chatID, "❌ فشل في إلغاء الحظر", adminBackKeyboard())
	} else {
		b.send(chatID, fmt.Sprintf("✅ تم إلغاء حظر المستخدم `%d`", telegramID), adminBackKeyboard())
	}
	_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
}

// --- Коды ---

func (b *AdminBot) manageCodes(ctx context.Context, chatID int64, _ string) {
	b.send(chatID, "🎫 *إدارة الأكواد*", rows(
		row("➕ إضافة أكواد", actionAddCodes),
		row("📊 المخزون", actionStockReport),
		row("⚠️ مخزون منخفض", actionLowStock),
		row("🔙 العودة", actionAdminMainMenu),
	))
}

// chooseCodesCategory перечисляет только категории с автоматической выдачей кодов.
func (b *AdminBot) chooseCodesCategory(ctx context.Context, chatID int64, _ string) {
	products, err := b.svc.ListProducts(ctx, true)
	if err != nil {
		b.logger.Error("list products", zap.Error(err))
		return
	}

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, p := range products {
		categories, err := b.svc.ListCategories(ctx, p.ID, true)
		if err != nil {
			b.logger.Error("list categories", zap.Error(err))
			continue
		}
		for _, c := range categories {
			if c.DeliveryType != model.DeliveryCode {
				continue
			}
			buttons = append(buttons, row(fmt.Sprintf("%s / %s", p.Name, c.Name), prefixCodesCategory+c.ID))
		}
	}
	if len(buttons) == 0 {
		b.send(chatID, "❌ لا توجد فئات بتسليم الأكواد", adminBackKeyboard())
		return
	}
	buttons = append(buttons, row("🔙 العودة", actionManageCodes))

	b.send(chatID, "🎫 اختر الفئة لإضافة الأكواد:", rows(buttons...))
}

func (b *AdminBot) pickCodesCategory(ctx context.Context, chatID int64, categoryID string) {
	data := map[string]string{"category_id": categoryID}
	if !b.setSession(ctx, chatID, stateCodesInput, data) {
		return
	}
	b.send(chatID, "🔢 اختر نوع الأكواد:", rows(
		row("📝 نصي", prefixCodeType+string(model.CodeTypeText)),
		row("🔢 رقمي", prefixCodeType+string(model.CodeTypeNumber)),
		row("🎫 كود + سيريال", prefixCodeType+string(model.CodeTypeDual)),
	))
}

func (b *AdminBot) pickCodeType(ctx context.Context, chatID int64, codeType string) {
	sess, err := b.sessions.Get(ctx, chatID, model.RoleAdmin)
	if err != nil || sess == nil {
		b.send(chatID, "❌ انتهت الجلسة. ابدأ من جديد.", adminBackKeyboard())
		return
	}
	sess.Data["code_type"] = codeType
	if !b.setSession(ctx, chatID, stateCodesInput, sess.Data) {
		return
	}

	prompt := "📋 أرسل الأكواد، كل كود في سطر:"
	if codeType == string(model.CodeTypeDual) {
		prompt = "📋 أرسل الأكواد بصيغة `كود|سيريال`، كل زوج في سطر:"
	}
	b.send(chatID, prompt, cancelKeyboard(actionAdminMainMenu))
}

func (b *AdminBot) finishAddCodes(ctx context.Context, chatID int64, text string, sess *model.Session) {
	categoryID := sess.Data["category_id"]
	codeType := model.CodeType(sess.Data["code_type"])
	if codeType == "" {
		codeType = model.CodeTypeText
	}

	parsed, err := codes.Parse(text, categoryID, codeType)
	if err != nil {
		b.send(chatID, fmt.Sprintf("❌ خطأ في التنسيق: %s\n\nحاول مرة أخرى:", err), cancelKeyboard(actionAdminMainMenu))
		return
	}

	n, err := b.svc.AddCodes(ctx, categoryID, codeType, parsed)
	if err != nil {
		b.logger.Error("add codes", zap.Error(err))
		b.send(chatID, "❌ فشل في إضافة الأكواد", adminBackKeyboard())
		_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
		return
	}

	_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
	b.send(chatID, fmt.Sprintf("✅ تم إضافة *%d* كود بنجاح!", n), adminBackKeyboard())
}

// --- Отчёты ---

func (b *AdminBot) showReports(ctx context.Context, chatID int64, _ string) {
	b.send(chatID, "📊 *التقارير*", rows(
		row("💰 تقرير المبيعات", actionSalesReport),
		row("📦 المخزون", actionStockReport),
		row("⚠️ مخزون منخفض", actionLowStock),
		row("🔙 العودة", actionAdminMainMenu),
	))
}

func (b *AdminBot) salesReport(ctx context.Context, chatID int64, _ string) {
	stats, err := b.svc.SalesReport(ctx)
	if err != nil {
		b.logger.Error("sales report", zap.Error(err))
		return
	}

	text := fmt.Sprintf(`📊 *تقرير المبيعات*

👥 المستخدمون: *%d*
📋 الطلبات: *%d*
✅ مكتملة: *%d*
⏳ قيد الانتظار: *%d*
💰 إجمالي المبيعات: *$%s*`,
		stats.TotalUsers, stats.TotalOrders, stats.CompletedOrders,
		stats.PendingOrders, stats.TotalRevenue.StringFixed(2))

	b.send(chatID, text, adminBackKeyboard())
}

func (b *AdminBot) stockReport(ctx context.Context, chatID int64, _ string) {
	stock, err := b.svc.StockReport(ctx)
	if err != nil {
		b.logger.Error("stock report", zap.Error(err))
		return
	}
	if len(stock) == 0 {
		b.send(chatID, "📦 لا توجد فئات بتسليم الأكواد", adminBackKeyboard())
		return
	}

	text := "📦 *مخزون الأكواد:*\n\n"
	for _, cs := range stock {
		text += fmt.Sprintf("• %s — *%d* كود متاح\n", cs.CategoryName, cs.Available)
	}
	b.send(chatID, text, adminBackKeyboard())
}

func (b *AdminBot) lowStockReport(ctx context.Context, chatID int64, _ string) {
	low, err := b.svc.LowStockReport(ctx)
	if err != nil {
		b.logger.Error("low stock report", zap.Error(err))
		return
	}
	if len(low) == 0 {
		b.send(chatID, "✅ جميع الفئات لديها مخزون كافٍ", adminBackKeyboard())
		return
	}

	text := "⚠️ *فئات بمخزون منخفض:*\n\n"
	for _, cs := range low {
		text += fmt.Sprintf("• %s — *%d* كود فقط\n", cs.CategoryName, cs.Available)
	}
	b.send(chatID, text, adminBackKeyboard())
}

// --- Заказы ---

func (b *AdminBot) manageOrders(ctx context.Context, chatID int64, _ string) {
	b.pendingOrders(ctx, chatID, "")
}

func (b *AdminBot) pendingOrders(ctx context.Context, chatID int64, _ string) {
	orders, err := b.svc.ListPendingOrders(ctx, 15)
	if err != nil {
		b.logger.Error("list pending orders", zap.Error(err))
		return
	}
	if len(orders) == 0 {
		b.send(chatID, "✅ لا توجد طلبات قيد الانتظار", adminBackKeyboard())
		return
	}

	text := "⏳ *طلبات قيد الانتظار:*\n\n"
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, o := range orders {
		text += fmt.Sprintf("📋 %s — %s / %s\n👤 `%d`", o.OrderNumber, o.ProductName, o.CategoryName, o.TelegramID)
		if o.AdditionalInfo != "" {
			text += fmt.Sprintf(" — %s", o.AdditionalInfo)
		}
		text += "\n\n"
		buttons = append(buttons, row("✅ معالجة "+o.OrderNumber, prefixProcessOrder+o.ID))
	}
	buttons = append(buttons, row("🔙 العودة", actionAdminMainMenu))

	b.send(chatID, text, rows(buttons...))
}

func (b *AdminBot) startProcessOrder(ctx context.Context, chatID int64, orderID string) {
	order, err := b.svc.GetOrder(ctx, orderID)
	if err != nil {
		b.send(chatID, "❌ الطلب غير موجود", adminBackKeyboard())
		return
	}
	if order.Status != model.OrderStatusPending {
		b.send(chatID, "❌ هذا الطلب تمت معالجته بالفعل", adminBackKeyboard())
		return
	}

	data := map[string]string{"order_id": orderID}
	if !b.setSession(ctx, chatID, stateFulfillValue, data) {
		return
	}

	text := fmt.Sprintf(`📋 *معالجة الطلب %s*

📦 %s / %s
👤 المشتري: `+"`%d`"+`
💰 $%s

أدخل الكود أو القيمة التي سيتم إرسالها للمشتري:`,
		order.OrderNumber, order.ProductName, order.CategoryName,
		order.TelegramID, order.Price.StringFixed(2))

	b.send(chatID, text, cancelKeyboard(actionAdminMainMenu))
}

func (b *AdminBot) finishProcessOrder(ctx context.Context, chatID int64, value string, sess *model.Session) {
	orderID := sess.Data["order_id"]

	order, err := b.svc.AdminFulfill(ctx, orderID, value)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			b.send(chatID, "❌ القيمة فارغة، أدخل الكود:", cancelKeyboard(actionAdminMainMenu))
			return
		case errors.Is(err, repository.ErrOrderAlreadyProcessed):
			b.send(chatID, "❌ هذا الطلب تمت معالجته بالفعل", adminBackKeyboard())
		case errors.Is(err, repository.ErrOrderNotFound):
			b.send(chatID, "❌ الطلب غير موجود", adminBackKeyboard())
		default:
			b.logger.Error("fulfill order", zap.Error(err))
			b.send(chatID, "❌ فشل في معالجة الطلب", adminBackKeyboard())
		}
		_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
		return
	}

	_ = b.sessions.Clear(ctx, chatID, model.RoleAdmin)
	b.send(chatID, fmt.Sprintf("✅ تم إرسال الكود للمشتري وإغلاق الطلب *%s*", order.OrderNumber), adminBackKeyboard())
}

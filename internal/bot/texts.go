package bot

import (
	"fmt"

	"github.com/dkotenko/telegpt/internal/domain"
)

// User-facing texts. The bot speaks Russian.
const (
	welcomeText = `Привет!

С этим ботом вы получите доступ к самым популярным нейросетям, таким как ChatGPT 4-o, DALL-E и Whisper.

Задавайте вопросы на любом языке, и бот быстро даст ответ.

Кстати, в день вы можете сделать до 5 запросов к GPT-4o-mini бесплатно.

Если захотите больше функций или нужна помощь, вот список команд:

/premium - Получить доступ к расширенному функционалу.
/account - Проверить информацию об аккаунте и подписке.
/model - Выбрать модель
/new_chat - Начать новый чат с нейросетью
/start - Посмотреть первоначальное меню`

	helpText = "Список команд:\n\n/new_chat - Начать новый чат\n/help - Посмотреть список команд"

	premiumText = `Тариф «Лайт» - хороший вариант, если вам нужен помощник для ежедневных задач: ответы на вопросы, решение тестов, описание картинок, распознавание фото и так далее. Безлимитный доступ к gpt-4o-mini, 25 запросов к gpt4-o и Dalle

Тариф «Смарт» — ваш выбор, когда вы каждый день взаимодействуете с нейросетями: создаете картинки, логотипы, пишете статьи и генерируете идеи. Безлимитный доступ к gpt-4o-mini, 50 запросов к gpt4-o и Dalle

Тариф «Про» — для тех, кто хочет максимум возможностей. Безлимитный доступ к gpt-4o-mini, 100 запросов к gpt4-o и Dalle`

	newChatText     = "Новый чат создан. Пишите запросы"
	processingText  = "Обрабатываю запрос..."
	quotaText       = "У вас больше нет запросов на эту модель"
	chooseModelText = "Выберите модель:"
	genericErrText  = "Что то пошло не так, попробуйте снова"

	voiceToChatText     = "Эта модель не распознает голосовые сообщения"
	textToImageOnlyText = "Эта модель распознает только текст"
	voiceOnlyText       = "Это модель принимает только голосовые сообщения"
	contentPolicyText   = "Ваш запрос содержит текст, недопустимый системой безопасности openAi"
	longReplyCaption    = "Ответ слишком длинный, поэтому записал его в текстовый файл"

	invoiceTitle       = "Подписка на бота"
	invoiceDescription = "Активация подписки на бота на 30 дней"
	invoiceLabel       = "Подписка на 1 месяц"
	paymentFailedText  = "Не удалось подтвердить платеж, обратитесь в поддержку"
)

// tierNames maps tiers to their display names on the premium keyboard.
var tierNames = map[domain.Tier]string{
	domain.TierLite:  "Лайт",
	domain.TierSmart: "Смарт",
	domain.TierPro:   "Про",
}

func modelChosenText(m domain.Model) string {
	return fmt.Sprintf("Вы выбрали модель: %s. Можете отправлять запрос", m.UpstreamName())
}

func tierChosenText(t domain.Tier) string {
	return fmt.Sprintf("Вы выбрали тариф: %s. Вам был отправлен инвойс", t)
}

func paymentConfirmedText(a *domain.Account) string {
	return fmt.Sprintf("Подписка «%s» активна до %s. Спасибо!",
		a.Tier, a.ExpiryDate.Format("02.01.2006"))
}

func accountText(a *domain.Account) string {
	expiry := "-"
	if a.Tier.Paid() {
		expiry = a.ExpiryDate.Format("02.01.2006")
	}
	return fmt.Sprintf(`Подписка: %s
Дата истечения подписки: %s
Текущая модель: %s

Осталось запросов:
GPT-4o-mini: %s
GPT-4o: %s
DALL-E 3: %s
WHISPER: %s`,
		a.Tier, expiry, a.CurrentModel.UpstreamName(),
		a.Quota.ChatMini, a.Quota.ChatFull, a.Quota.Image, a.Quota.Transcription)
}

package quiz

import (
	"fmt"
	"math"
	"time"
)

// StartTestLabel is the quick-reply button that starts a test
const StartTestLabel = "Начать тестирование"

// TimeoutAnswer is recorded as the answer text when time runs out
const TimeoutAnswer = "Время вышло"

const (
	msgAskName        = "Привет! Введи своё имя:"
	msgAskRole        = "Выберите роль: %s?"
	msgUnknownRole    = "Нет такой роли. Доступны: %s"
	msgRegistered     = "Отлично, %s (роль: %s)! Можно начать тест."
	msgWelcomeBack    = "С возвращением, %s (роль: %s)!"
	msgRegisterFirst  = "Сначала зарегистрируйтесь /start"
	msgNameThenRole   = "Сначала введите имя, затем роль (/start)."
	msgNoQuestions    = "Нет вопросов в базе."
	msgQuestion       = "Вопрос %d/%d\n\n%s\nОсталось %d секунд на ответ:"
	msgRemaining      = "Осталось %d секунд..."
	msgTimeout        = "⏳ Время вышло! Ответ не засчитан."
	msgCorrect        = "Правильно! ✅ +1 балл"
	msgWrong          = "Неверно ❌ Правильный ответ: %s"
	msgFinished       = "Тест окончен! Ваш результат: %d из %d"
	msgUseButtons     = "Пожалуйста, используйте кнопки для выбора ответа."
	msgUnrecognized   = "Неизвестная команда или вы не в процессе теста."
	msgTestInProgress = "Тест уже идёт. Ответьте на текущий вопрос."
	msgFailure        = "Сервис временно недоступен. Попробуйте позже."
)

// seconds rounds up so the countdown never shows 0 while time is left
func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func remainingText(d time.Duration) string {
	return fmt.Sprintf(msgRemaining, seconds(d))
}

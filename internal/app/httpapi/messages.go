package httpapi

// Flash and page messages shown to visitors.
const (
	msgLoginRequired   = "Пожалуйста, войдите, чтобы получить доступ к этой странице."
	msgNoAccess        = "У вас нет доступа к этой странице."
	msgNotFound        = "Страница не найдена."
	msgServerError     = "Внутренняя ошибка сервера. Попробуйте позже."
	msgTooManyRequests = "Слишком много попыток. Подождите немного и попробуйте снова."
	msgFormInvalid     = "Проверьте правильность заполнения формы."

	msgRegistered      = "Регистрация прошла успешно. Теперь вы можете войти."
	msgDuplicateEmail  = "Аккаунт с таким email уже существует."
	msgLoggedIn        = "Вы успешно вошли в систему."
	msgBadCredentials  = "Неверный логин или пароль."
	msgLoggedOut       = "Вы успешно вышли из системы."
	msgProfileUpdated  = "Ваш профиль был обновлен"
	msgProfileConflict = "Пользователь с таким именем или email уже существует."

	msgAddedToCart     = "Товар добавлен в корзину."
	msgRemovedFromCart = "Товар удален из корзины."
	msgNotInCart       = "Товар не найден в корзине."
	msgCartEmpty       = "Ваша корзина пуста."
	msgOrderPlaced     = "Ваш заказ успешно оформлен. Подтверждение отправлено на ваш email."
	msgOrderNoEmail    = "Ваш заказ оформлен, но письмо с подтверждением отправить не удалось."
	msgCancelForbidden = "У вас нет прав на отмену этого заказа."
	msgOrderCancelled  = "Заказ успешно отменён."

	msgProductAdded     = "Товар успешно добавлен."
	msgEditForbidden    = "У вас нет прав на редактирование этого товара."
	msgProductUpdated   = "Товар успешно обновлен."
	msgDeleteForbidden  = "У вас нет прав на удаление этого товара."
	msgProductDeleted   = "Товар успешно удален."
	msgImageTooLarge    = "Файл слишком большой."
	msgImageUnsupported = "Допустимы только изображения PNG, JPEG, GIF или WEBP."
	msgImageEmpty       = "Файл пуст."

	msgUserUpdated         = "Данные пользователя обновлены"
	msgUserDeleted         = "Пользователь удален"
	msgUserConflict        = "Пользователь с таким именем или email уже существует."
	msgCannotDeleteSelf    = "Нельзя удалить собственную учётную запись."
	msgAdminProductDeleted = "Товар удален"
)

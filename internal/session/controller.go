// Пакет session — контроллер жизненного цикла сессии консоли.
// Единственный владелец состояния аутентификации: фаза, токен, пользователь,
// разрешения и флаг first-time setup меняются только через его операции.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arturkryukov/patchview/console-module/internal/backend"
	"github.com/arturkryukov/patchview/console-module/internal/domain/model"
	"github.com/arturkryukov/patchview/console-module/internal/domain/rbac"
)

// Ключи сохранённого состояния в хранилище.
const (
	// StorageKeyToken — bearer token (строка).
	StorageKeyToken = "token"
	// StorageKeyUser — JSON-сериализованный пользователь.
	StorageKeyUser = "user"
	// StorageKeyPermissions — JSON-сериализованная карта разрешений.
	StorageKeyPermissions = "permissions"
)

// ErrKeyNotFound — ключ отсутствует в хранилище состояния.
var ErrKeyNotFound = errors.New("ключ не найден в хранилище состояния")

// Storage — персистентное key-value хранилище состояния консоли.
// Единственный писатель auth-ключей — Controller.
type Storage interface {
	// Get возвращает значение ключа. ErrKeyNotFound — ключ отсутствует.
	Get(ctx context.Context, key string) (string, error)
	// Set сохраняет значение ключа (upsert).
	Set(ctx context.Context, key, value string) error
	// Delete удаляет ключ. Отсутствие ключа не является ошибкой.
	Delete(ctx context.Context, key string) error
}

// LoginResult — структурированный результат login.
// Ожидаемые отказы (неверные учётные данные, сетевая ошибка)
// не являются ошибками Go: они возвращаются в Error для показа пользователю.
type LoginResult struct {
	Success bool
	Error   string
}

// ActionResult — структурированный результат пользовательских операций
// (смена пароля, обновление профиля).
type ActionResult struct {
	Success bool
	Error   string
}

// errBackendUnavailable — сообщение пользователю при сетевой ошибке.
const errBackendUnavailable = "Сервер недоступен, попробуйте позже"

// Controller — контроллер сессии консоли.
// Все поля состояния защищены одним mutex: обновление токена, пользователя,
// фазы и флага setup при установке сессии выполняется в одной критической
// секции, чтобы читатели никогда не увидели частично применённое состояние.
type Controller struct {
	mu sync.Mutex

	phase              Phase
	token              string
	user               *model.User
	permissions        map[string]bool
	permissionsLoading bool
	setupRequired      bool

	backend *backend.Client
	storage Storage
	cipher  *Cipher
	logger  *slog.Logger

	// fetchTimeout — таймаут фоновой загрузки разрешений.
	fetchTimeout time.Duration
	// fetchWG отслеживает фоновые загрузки разрешений (для корректного shutdown).
	fetchWG sync.WaitGroup
}

// NewController создаёт контроллер сессии. Состояние не восстанавливается
// до вызова Initialize.
func NewController(client *backend.Client, storage Storage, cipher *Cipher, logger *slog.Logger) *Controller {
	return &Controller{
		phase:        PhaseInitialising,
		backend:      client,
		storage:      storage,
		cipher:       cipher,
		logger:       logger.With(slog.String("component", "session_controller")),
		fetchTimeout: 30 * time.Second,
	}
}

// Initialize восстанавливает сессию из хранилища и доводит контроллер
// до фазы READY. Вызывается один раз при старте сервиса.
//
// Если в хранилище есть валидные token+user — они восстанавливаются в память
// и фаза сразу становится READY (CHECKING_SETUP пропускается). Отсутствующее
// или повреждённое состояние очищается, и контроллер проходит через
// CHECKING_SETUP: проверку наличия администраторов в backend.
func (c *Controller) Initialize(ctx context.Context) {
	token, user, ok := c.restoreSession(ctx)
	if !ok {
		// Свежий старт или повреждённое состояние: все auth-ключи
		// очищены, решаем вопрос first-time setup.
		c.checkSetupRequirement(ctx)
		return
	}

	perms, havePerms := c.restorePermissions(ctx)

	c.mu.Lock()
	c.token = token
	c.user = user
	c.permissions = perms
	c.permissionsLoading = !havePerms
	c.setupRequired = false
	c.phase = PhaseReady
	c.mu.Unlock()

	c.logger.Info("сессия восстановлена из хранилища",
		slog.String("username", user.Username),
		slog.Bool("permissions_cached", havePerms))

	if !havePerms {
		// Разрешения не сохранены — загружаем в фоне.
		c.fetchPermissionsAsync(token)
	}
}

// restoreSession читает token и user из хранилища.
// Возвращает ok=false если состояние отсутствует, повреждено или токен
// истёк; в этом случае все auth-ключи очищаются. Повреждённое состояние —
// локально восстановимая ситуация, не ошибка.
func (c *Controller) restoreSession(ctx context.Context) (string, *model.User, bool) {
	token, err := c.getDecrypted(ctx, StorageKeyToken)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			c.logger.Warn("сохранённый токен повреждён, состояние очищено",
				slog.String("error", err.Error()))
		}
		c.clearStoredState(ctx)
		return "", nil, false
	}
	if token == "" {
		c.clearStoredState(ctx)
		return "", nil, false
	}

	userJSON, err := c.getDecrypted(ctx, StorageKeyUser)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			c.logger.Warn("сохранённый пользователь повреждён, состояние очищено",
				slog.String("error", err.Error()))
		}
		c.clearStoredState(ctx)
		return "", nil, false
	}

	var user model.User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil || user.Username == "" {
		c.logger.Warn("сохранённый пользователь не парсится, состояние очищено")
		c.clearStoredState(ctx)
		return "", nil, false
	}
	if !rbac.IsValidRole(user.Role) {
		c.logger.Warn("сохранённый пользователь имеет неизвестную роль, состояние очищено",
			slog.String("username", user.Username),
			slog.String("role", user.Role))
		c.clearStoredState(ctx)
		return "", nil, false
	}

	if tokenExpired(token) {
		c.logger.Info("сохранённый токен истёк, состояние очищено",
			slog.String("username", user.Username))
		c.clearStoredState(ctx)
		return "", nil, false
	}

	return token, &user, true
}

// restorePermissions читает сохранённые разрешения из хранилища.
// Отсутствие или повреждение — не ошибка: разрешения будут
// загружены заново из backend.
func (c *Controller) restorePermissions(ctx context.Context) (map[string]bool, bool) {
	permsJSON, err := c.getDecrypted(ctx, StorageKeyPermissions)
	if err != nil {
		return nil, false
	}

	var perms map[string]bool
	if err := json.Unmarshal([]byte(permsJSON), &perms); err != nil {
		c.logger.Warn("сохранённые разрешения не парсятся, будут загружены заново")
		return nil, false
	}

	return perms, true
}

// checkSetupRequirement решает вопрос first-time setup: есть ли в backend
// хотя бы один администратор. Выполняется ровно один раз, только из фазы
// CHECKING_SETUP, и безусловно завершается переходом в READY.
//
// На любую ошибку проверки (сеть, не-OK ответ) setup считается требуемым:
// доступность первичной настройки важнее, чем риск показать форму setup
// лишний раз (backend всё равно отклонит повторное создание администратора).
func (c *Controller) checkSetupRequirement(ctx context.Context) {
	c.mu.Lock()
	c.phase = PhaseCheckingSetup
	c.mu.Unlock()

	setupRequired := true
	hasAdmins, err := c.backend.CheckAdminUsers(ctx)
	if err != nil {
		c.logger.Warn("проверка администраторов не удалась, считаем setup требуемым",
			slog.String("error", err.Error()))
	} else {
		setupRequired = !hasAdmins
	}

	c.mu.Lock()
	c.setupRequired = setupRequired
	c.phase = PhaseReady
	c.mu.Unlock()

	c.logger.Info("проверка first-time setup завершена",
		slog.Bool("setup_required", setupRequired))
}

// Login аутентифицирует пользователя в backend.
// Ожидаемые отказы (неверные учётные данные, недоступный backend)
// возвращаются в LoginResult.Error; состояние сессии при отказе не меняется.
func (c *Controller) Login(ctx context.Context, username, password string) LoginResult {
	auth, err := c.backend.Login(ctx, username, password)
	if err != nil {
		if apiErr := backend.AsAPIError(err); apiErr != nil {
			c.logger.Info("отказ в аутентификации",
				slog.String("username", username),
				slog.Int("status", apiErr.StatusCode))
			return LoginResult{Error: apiErr.Message}
		}
		c.logger.Error("ошибка запроса login", slog.String("error", err.Error()))
		return LoginResult{Error: errBackendUnavailable}
	}

	c.SetAuthState(auth.Token, &auth.User)

	c.logger.Info("пользователь аутентифицирован",
		slog.String("username", auth.User.Username),
		slog.String("role", auth.User.Role))

	return LoginResult{Success: true}
}

// SetAuthState устанавливает сессию напрямую — для потоков, выполнивших
// аутентификацию самостоятельно (login, setup-admin с авто-логином).
//
// Токен, пользователь, сброс setupRequired и фаза READY применяются в одной
// критической секции: сразу после возврата любой читатель видит полностью
// установленную сессию, промежуточных состояний не бывает. Только после
// этого состояние сохраняется в хранилище и в фоне загружаются разрешения
// (их ошибки сессию не откатывают).
func (c *Controller) SetAuthState(token string, user *model.User) {
	c.mu.Lock()
	c.token = token
	c.user = user
	c.permissions = nil
	c.permissionsLoading = true
	c.setupRequired = false
	c.phase = PhaseReady
	c.mu.Unlock()

	c.persistSession(context.Background(), token, user)
	c.fetchPermissionsAsync(token)
}

// Logout завершает сессию. Уведомление backend — best-effort: сетевая
// ошибка логируется и не повторяется. Память и хранилище очищаются
// безусловно — клиент всегда приходит в разлогиненное состояние.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	token := c.token
	username := ""
	if c.user != nil {
		username = c.user.Username
	}
	c.mu.Unlock()

	if token != "" {
		if err := c.backend.Logout(ctx, token); err != nil {
			c.logger.Warn("уведомление backend о logout не удалось",
				slog.String("error", err.Error()))
		}
	}

	c.mu.Lock()
	c.token = ""
	c.user = nil
	c.permissions = nil
	c.permissionsLoading = false
	c.mu.Unlock()

	c.clearStoredState(ctx)

	c.logger.Info("сессия завершена", slog.String("username", username))
}

// UpdateProfile обновляет профиль пользователя в backend.
// На успех обновлённый пользователь заменяет текущего в памяти и хранилище.
func (c *Controller) UpdateProfile(ctx context.Context, req backend.ProfileUpdateRequest) ActionResult {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	user, err := c.backend.UpdateProfile(ctx, token, req)
	if err != nil {
		if apiErr := backend.AsAPIError(err); apiErr != nil {
			return ActionResult{Error: apiErr.Message}
		}
		c.logger.Error("ошибка запроса обновления профиля", slog.String("error", err.Error()))
		return ActionResult{Error: errBackendUnavailable}
	}

	c.mu.Lock()
	c.user = user
	c.mu.Unlock()

	c.persistSession(ctx, token, user)

	c.logger.Info("профиль обновлён", slog.String("username", user.Username))
	return ActionResult{Success: true}
}

// ChangePassword меняет пароль пользователя в backend.
// Состояние сессии не меняется ни при каком исходе.
func (c *Controller) ChangePassword(ctx context.Context, currentPassword, newPassword string) ActionResult {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if err := c.backend.ChangePassword(ctx, token, currentPassword, newPassword); err != nil {
		if apiErr := backend.AsAPIError(err); apiErr != nil {
			return ActionResult{Error: apiErr.Message}
		}
		c.logger.Error("ошибка запроса смены пароля", slog.String("error", err.Error()))
		return ActionResult{Error: errBackendUnavailable}
	}

	c.logger.Info("пароль изменён")
	return ActionResult{Success: true}
}

// SetupAdmin создаёт первого администратора (first-time setup)
// и устанавливает сессию через авто-логин.
func (c *Controller) SetupAdmin(ctx context.Context, req backend.SetupAdminRequest) ActionResult {
	auth, err := c.backend.SetupAdmin(ctx, req)
	if err != nil {
		if apiErr := backend.AsAPIError(err); apiErr != nil {
			return ActionResult{Error: apiErr.Message}
		}
		c.logger.Error("ошибка запроса setup-admin", slog.String("error", err.Error()))
		return ActionResult{Error: errBackendUnavailable}
	}

	c.SetAuthState(auth.Token, &auth.User)

	c.logger.Info("создан первый администратор",
		slog.String("username", auth.User.Username))

	return ActionResult{Success: true}
}

// RefreshPermissions синхронно перезагружает разрешения из backend.
// На ошибку последний известный набор разрешений сохраняется, ошибка
// только логируется.
func (c *Controller) RefreshPermissions(ctx context.Context) {
	c.mu.Lock()
	token := c.token
	c.permissionsLoading = true
	c.mu.Unlock()

	c.fetchPermissions(ctx, token)
}

// fetchPermissionsAsync запускает загрузку разрешений в фоне.
func (c *Controller) fetchPermissionsAsync(token string) {
	c.fetchWG.Add(1)
	go func() {
		defer c.fetchWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
		defer cancel()

		c.fetchPermissions(ctx, token)
	}()
}

// fetchPermissions загружает разрешения из backend и снимает loading-флаг.
// Результат применяется только если токен за время загрузки не сменился:
// ответ для прежнего токена (logout или повторный login во время загрузки)
// отбрасывается и не персистится.
func (c *Controller) fetchPermissions(ctx context.Context, token string) {
	perms, err := c.backend.UserPermissions(ctx, token)

	c.mu.Lock()
	if c.token != token {
		c.mu.Unlock()
		c.logger.Debug("результат загрузки разрешений отброшен: токен сменился")
		return
	}
	if err == nil {
		c.permissions = perms
	}
	c.permissionsLoading = false
	c.mu.Unlock()

	if err != nil {
		// Сохраняем последний известный набор, пользователя не беспокоим.
		c.logger.Warn("загрузка разрешений не удалась",
			slog.String("error", err.Error()))
		return
	}

	c.persistPermissions(ctx, perms)
}

// WaitBackgroundFetches дожидается завершения фоновых загрузок разрешений.
// Используется при graceful shutdown.
func (c *Controller) WaitBackgroundFetches() {
	c.fetchWG.Wait()
}

// --- Предикаты и доступ к состоянию ---

// Phase возвращает текущую фазу контроллера.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// IsAuthenticated — сессия установлена: фаза READY и присутствуют
// и токен, и пользователь.
func (c *Controller) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isAuthenticatedLocked()
}

func (c *Controller) isAuthenticatedLocked() bool {
	return c.phase == PhaseReady && c.token != "" && c.user != nil
}

// IsAuthReady — гейт для зависимых подсистем (poller обновлений, страницы
// консоли): аутентифицированные запросы разрешены только когда фаза READY
// и сессия установлена.
func (c *Controller) IsAuthReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == PhaseReady && c.isAuthenticatedLocked()
}

// IsAdmin — текущий пользователь имеет административную роль.
func (c *Controller) IsAdmin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user != nil && rbac.IsAdminRole(c.user.Role)
}

// NeedsFirstTimeSetup — требуется ли первичная настройка
// (создание первого администратора).
func (c *Controller) NeedsFirstTimeSetup() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setupRequired
}

// PermissionsLoading — идёт ли загрузка разрешений.
func (c *Controller) PermissionsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permissionsLoading
}

// HasPermission проверяет именованное разрешение пользователя.
// Пока идёт загрузка разрешений — всегда false: «неизвестно» трактуется
// как «запрещено». Неизвестное имя — false.
func (c *Controller) HasPermission(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.permissionsLoading {
		return false
	}
	return c.permissions[name]
}

// Token возвращает текущий bearer token (пустой — сессии нет).
func (c *Controller) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// CurrentUser возвращает копию текущего пользователя (nil — сессии нет).
func (c *Controller) CurrentUser() *model.User {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Permissions возвращает копию текущей карты разрешений.
func (c *Controller) Permissions() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	perms := make(map[string]bool, len(c.permissions))
	for k, v := range c.permissions {
		perms[k] = v
	}
	return perms
}

// --- Персистентность ---

// getDecrypted читает и дешифрует значение ключа из хранилища.
func (c *Controller) getDecrypted(ctx context.Context, key string) (string, error) {
	encrypted, err := c.storage.Get(ctx, key)
	if err != nil {
		return "", err
	}

	plaintext, err := c.cipher.Decrypt(encrypted)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// setEncrypted шифрует и сохраняет значение ключа.
func (c *Controller) setEncrypted(ctx context.Context, key, value string) error {
	encrypted, err := c.cipher.Encrypt([]byte(value))
	if err != nil {
		return err
	}

	return c.storage.Set(ctx, key, encrypted)
}

// persistSession сохраняет token и user в хранилище.
// Ошибка записи сессию не откатывает, только логируется: в памяти
// состояние уже установлено, пострадает лишь восстановление после рестарта.
func (c *Controller) persistSession(ctx context.Context, token string, user *model.User) {
	if err := c.setEncrypted(ctx, StorageKeyToken, token); err != nil {
		c.logger.Error("сохранение токена не удалось", slog.String("error", err.Error()))
		return
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		c.logger.Error("сериализация пользователя не удалась", slog.String("error", err.Error()))
		return
	}
	if err := c.setEncrypted(ctx, StorageKeyUser, string(userJSON)); err != nil {
		c.logger.Error("сохранение пользователя не удалось", slog.String("error", err.Error()))
	}
}

// persistPermissions сохраняет карту разрешений в хранилище.
func (c *Controller) persistPermissions(ctx context.Context, perms map[string]bool) {
	permsJSON, err := json.Marshal(perms)
	if err != nil {
		c.logger.Error("сериализация разрешений не удалась", slog.String("error", err.Error()))
		return
	}
	if err := c.setEncrypted(ctx, StorageKeyPermissions, string(permsJSON)); err != nil {
		c.logger.Error("сохранение разрешений не удалось", slog.String("error", err.Error()))
	}
}

// clearStoredState удаляет все три auth-ключа из хранилища.
func (c *Controller) clearStoredState(ctx context.Context) {
	for _, key := range []string{StorageKeyToken, StorageKeyUser, StorageKeyPermissions} {
		if err := c.storage.Delete(ctx, key); err != nil {
			c.logger.Error("очистка ключа хранилища не удалась",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
}

// tokenExpired проверяет истечение срока действия токена без верификации
// подписи (верифицирует backend). Токен, не являющийся JWT или без exp,
// считается действующим — backend отклонит его сам при первом запросе.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}

	return time.Now().After(exp.Time)
}

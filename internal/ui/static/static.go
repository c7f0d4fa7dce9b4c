// Пакет static — встроенные статические файлы консоли (CSS).
package static

import (
	"embed"
	"net/http"
)

//go:embed css/*.css
var staticFS embed.FS

// Handler возвращает http.Handler для отдачи статических файлов.
// Монтируется на /static/.
func Handler() http.Handler {
	return http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
}

// Package cli реализует инструмент командной строки MarketMind.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с MarketMind API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления runs, schedules и просмотра
// топологий и бюджета.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для MarketMind API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	runs, err := client.ListRuns(cli.ListRunsOpts{})
//
// ## StreamRun
//
// Подключение к SSE-стриму движка для наблюдения за прогрессом run
// в реальном времени (команда run watch). Стрим живёт в процессе
// движка, поэтому используется отдельный engine URL.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: marketmind run list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - pipeline: list, show
//   - run: list, start, show, cancel, decisions, costs, watch
//   - schedule: list, create, show, update, delete, enable, disable
//   - budget: show
//
// Каждая группа создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli

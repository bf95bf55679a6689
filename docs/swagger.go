package docs

// @title Campaign Monitor API
// @version 1.0
// @description Live lifecycle synchronization of bulk-messaging campaigns: reconciled state streaming, optimistic control commands and instance health.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.one-green.io/support
// @contact.email support@one-green.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Dashboard API key. Streams may pass it as the api_key query parameter.

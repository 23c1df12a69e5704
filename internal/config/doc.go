// Package config загружает YAML-конфигурацию сервиса:
// бюджетные потолки тенантов и настройки движка выполнения.
package config

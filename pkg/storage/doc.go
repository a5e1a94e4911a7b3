// Package storage provides persistent storage functionality for the schedule bot.
// It uses BadgerDB as the embedded database and stores values as JSON under string keys.
package storage

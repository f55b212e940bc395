// Command shelterctl выполняет служебные операции сервиса заявок: миграции, начальные данные, повтор DLQ.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

package errs

import (
	"errors"
	"fmt"
)

// Kind — класс ошибки провижининга. По Kind вызывающий код решает судьбу
// запуска: allocation и отказ stop фатальны, ошибки пира — нет.
type Kind string

const (
	// KindValidation — конфигурация оператора не прошла проверку.
	KindValidation Kind = "validation"
	// KindAllocation — каталог пиров нечитаем, имя каталога не парсится
	// или каталог разошёлся с серверным конфигом.
	KindAllocation Kind = "allocation"
	// KindKeygen — внешний генератор ключей недоступен, завершился с
	// ошибкой или вернул пустой вывод.
	KindKeygen Kind = "keygen"
	// KindConfigWrite — не удались бэкап, append серверного конфига или
	// запись клиентского конфига.
	KindConfigWrite Kind = "configwrite"
	// KindEncoding — внешний QR-энкодер недоступен или упал; пир при этом
	// считается провиженным.
	KindEncoding Kind = "encoding"
	// KindServiceControl — stop/start сервисного юнита не удался.
	KindServiceControl Kind = "servicecontrol"
)

// Error оборачивает причину и добавляет Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap отдаёт причину для errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New создаёт ошибку указанного Kind.
func New(kind Kind, err error) error {
	if err == nil {
		err = errors.New(string(kind))
	}
	return &Error{Kind: kind, Err: err}
}

// Newf — как New, но с форматированием причины.
func Newf(kind Kind, format string, a ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, a...)}
}

// KindOf достаёт Kind из цепочки обёрток; "" — ошибка без Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

package peers

import (
	"wgprov/internal/errs"
	"wgprov/internal/models"
	"wgprov/internal/render/wgconf"
)

// NextAllocation вычисляет следующую пару (ordinal, октет) по содержимому
// каталога peers. Никаких счётчиков между запусками: каждый запуск выводит
// состояние заново из entries.
//
// Ordinal — максимум существующих + 1; октет — последний октет адреса
// самого свежего (наибольший ordinal) пира + 1. Пустой каталог даёт
// ordinal 1 и октет 2. Октет reserved пропускается: он занят интерфейсом
// сервера.
func (s *Store) NextAllocation(entries []Entry, reserved int) (models.Allocation, error) {
	alloc := models.Allocation{NextOrdinal: 1, NextSuffix: 1}
	if len(entries) > 0 {
		latest := entries[len(entries)-1]
		alloc.NextOrdinal = latest.Ordinal + 1

		conf, err := s.ReadClientConf(latest)
		if err != nil {
			return models.Allocation{}, err
		}
		suffix, err := wgconf.ParseAddressSuffix(conf)
		if err != nil {
			return models.Allocation{}, errs.Newf(errs.KindAllocation,
				"peer %s: %v", latest.DirName(), err)
		}
		alloc.NextSuffix = suffix + 1
	}

	// октет 1 пирам не выдаётся никогда, октет reserved — занят сервером
	if alloc.NextSuffix < 2 {
		alloc.NextSuffix = 2
	}
	if alloc.NextSuffix == reserved {
		alloc.NextSuffix++
	}
	if alloc.NextSuffix > 254 {
		return models.Allocation{}, errs.Newf(errs.KindAllocation,
			"address space exhausted: next suffix %d exceeds 254", alloc.NextSuffix)
	}
	return alloc, nil
}

// NextSuffixAfter — следующий октет после s с учётом reserved. Им шагает
// батч между пирами.
func NextSuffixAfter(s, reserved int) int {
	s++
	if s == reserved {
		s++
	}
	return s
}

// CheckSuffixRange проверяет, что батч из count октетов, начиная со start,
// умещается в [2,254] с учётом пропуска reserved. Проверка до первой записи:
// батч либо помещается целиком, либо не начинается.
func CheckSuffixRange(start, count, reserved int) error {
	s := start
	for i := 0; i < count; i++ {
		if s == reserved {
			s++
		}
		if s < 2 || s > 254 {
			return errs.Newf(errs.KindAllocation,
				"address space exhausted: suffix %d for peer %d of %d is out of [2,254]",
				s, i+1, count)
		}
		s++
	}
	return nil
}

// VerifyMirror сверяет каталог peers с набором публичных ключей из
// серверного конфига: у каждого каталога обязана быть своя [Peer]-строфа.
// Расхождение фатально для запуска: чинить руками, не плодить дубликаты
// адресов.
func (s *Store) VerifyMirror(entries []Entry, serverKeys map[string]bool) error {
	for _, e := range entries {
		pub, err := s.ReadPublicKey(e)
		if err != nil {
			return err
		}
		if !serverKeys[pub] {
			return errs.Newf(errs.KindAllocation,
				"peer %s: public key is missing from the server config", e.DirName())
		}
	}
	return nil
}

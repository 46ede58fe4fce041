// Package catalog содержит статическую таблицу тарифов магазина.
// Таблица собирается один раз при старте процесса и дальше не меняется.
package catalog

import (
	"errors"
	"fmt"
)

// ErrInvalidSelection возвращается при обращении по индексу тарифа
// или длительности, которых нет в каталоге.
var ErrInvalidSelection = errors.New("invalid plan or duration selection")

// Plan описывает один тариф: имя, количество устройств и цены
// по фиксированному набору длительностей.
type Plan struct {
	Name    string
	Devices int
	Prices  map[int]float64 // длительность в днях -> цена
}

// Catalog — неизменяемая таблица тарифов и допустимых длительностей.
type Catalog struct {
	durations []int
	plans     []Plan
}

// New собирает каталог с тарифами витрины.
func New() *Catalog {
	return &Catalog{
		durations: []int{30, 60, 180, 365},
		plans: []Plan{
			{Name: "Basic", Devices: 1, Prices: map[int]float64{30: 5, 60: 9, 180: 25, 365: 45}},
			{Name: "Standard", Devices: 3, Prices: map[int]float64{30: 10, 60: 18, 180: 50, 365: 90}},
			{Name: "Premium", Devices: 5, Prices: map[int]float64{30: 15, 60: 27, 180: 75, 365: 135}},
		},
	}
}

// Plans возвращает все тарифы в порядке отображения.
func (c *Catalog) Plans() []Plan {
	return c.plans
}

// Durations возвращает допустимые длительности в днях.
func (c *Catalog) Durations() []int {
	return c.durations
}

// Plan возвращает тариф по индексу.
func (c *Catalog) Plan(index int) (Plan, error) {
	if index < 0 || index >= len(c.plans) {
		return Plan{}, ErrInvalidSelection
	}
	return c.plans[index], nil
}

// DurationLabel возвращает короткую подпись длительности для кнопки.
func DurationLabel(days int) string {
	switch {
	case days >= 365:
		return fmt.Sprintf("%d yr", days/365)
	case days%30 == 0:
		return fmt.Sprintf("%d mo", days/30)
	default:
		return fmt.Sprintf("%d d", days)
	}
}

// Price возвращает тариф и цену по индексу тарифа и длительности.
func (c *Catalog) Price(index, durationDays int) (Plan, float64, error) {
	plan, err := c.Plan(index)
	if err != nil {
		return Plan{}, 0, err
	}
	price, ok := plan.Prices[durationDays]
	if !ok {
		return Plan{}, 0, ErrInvalidSelection
	}
	return plan, price, nil
}

package handlers

import (
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/syntaxa/coffeechest/internal/database/models"
	"github.com/syntaxa/coffeechest/internal/locales"
)

// Callback data tokens. The zone picker uses "tz <zone>"; the rest are
// fixed tokens or prefix_value pairs.
const (
	cbTimezonePrefix  = "tz "
	cbTimezoneManual  = "tz_manual"
	cbHourPrefix      = "time_hour_"
	cbMinutePrefix    = "time_minute_"
	cbToggleBonusText = "toggle_bonus_text"
	cbToggleDessert   = "toggle_dessert"
	cbProbPrefix      = "prob_"
	cbCloseDessert    = "close_dessert"
)

// cookieProbabilities are the percentages offered by the settings keyboard.
var cookieProbabilities = []int{20, 40, 60, 80}

func btn(msgID string, data map[string]interface{}, callback string) telego.InlineKeyboardButton {
	localizer := locales.NewLocalizer(locales.DefaultLanguage)
	return tu.InlineKeyboardButton(locales.GetMessage(localizer, msgID, data)).WithCallbackData(callback)
}

// timezoneKeyboard offers a fixed set of zones plus manual entry.
func timezoneKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			btn("BtnTzLondon", nil, cbTimezonePrefix+"Europe/London"),
			btn("BtnTzMoscow", nil, cbTimezonePrefix+"Europe/Moscow"),
			btn("BtnTzDubai", nil, cbTimezonePrefix+"Asia/Dubai"),
		),
		tu.InlineKeyboardRow(
			btn("BtnTzNewYork", nil, cbTimezonePrefix+"America/New_York"),
			btn("BtnTzChicago", nil, cbTimezonePrefix+"America/Chicago"),
			btn("BtnTzLosAngeles", nil, cbTimezonePrefix+"America/Los_Angeles"),
		),
		tu.InlineKeyboardRow(
			btn("BtnTzManual", nil, cbTimezoneManual),
		),
	)
}

// hourKeyboard is the first step of the time picker: 24 hours, six per row.
func hourKeyboard() *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	for start := 0; start < 24; start += 6 {
		row := make([]telego.InlineKeyboardButton, 0, 6)
		for hour := start; hour < start+6; hour++ {
			row = append(row, tu.InlineKeyboardButton(fmt.Sprintf("%02d", hour)).
				WithCallbackData(fmt.Sprintf("%s%d", cbHourPrefix, hour)))
		}
		rows = append(rows, row)
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// minuteKeyboard is the second step: five-minute increments, six per row.
func minuteKeyboard() *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	for start := 0; start < 60; start += 30 {
		row := make([]telego.InlineKeyboardButton, 0, 6)
		for minute := start; minute < start+30; minute += 5 {
			row = append(row, tu.InlineKeyboardButton(fmt.Sprintf(":%02d", minute)).
				WithCallbackData(fmt.Sprintf("%s%d", cbMinutePrefix, minute)))
		}
		rows = append(rows, row)
	}
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// haikuKeyboard carries the single bonus-text toggle button.
func haikuKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(btn("BtnToggle", nil, cbToggleBonusText)),
	)
}

// cookieKeyboard renders the bonus-item settings reflecting current state:
// an on/off toggle, the probability choices with the active one marked, and
// a close button.
func cookieKeyboard(settings models.CookieSettings) *telego.InlineKeyboardMarkup {
	toggleKey := "BtnCookieOff"
	if settings.Enabled {
		toggleKey = "BtnCookieOn"
	}

	probRow := make([]telego.InlineKeyboardButton, 0, len(cookieProbabilities))
	for _, prob := range cookieProbabilities {
		key := "BtnCookieProb"
		if prob == settings.Probability {
			key = "BtnCookieProbSelected"
		}
		probRow = append(probRow, btn(key, map[string]interface{}{"Prob": prob},
			fmt.Sprintf("%s%d", cbProbPrefix, prob)))
	}

	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(btn(toggleKey, nil, cbToggleDessert)),
		probRow,
		tu.InlineKeyboardRow(btn("BtnClose", nil, cbCloseDessert)),
	)
}

package app

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyQuitUpper = "Q"
	KeyCtrlC     = "ctrl+c"
	KeyTab       = "tab"
	KeyEsc       = "esc"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyJ         = "j"
	KeyK         = "k"
	KeyHome      = "g"
	KeyEnd       = "G"
	KeyEnter     = "enter"
	KeyToggleLog = "l"
	KeyRerun     = "x"
	KeyRefresh   = "r"
	KeySubmit    = "ctrl+s"
)

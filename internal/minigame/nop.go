package minigame

// NopShooter, NopHUD and NopCamera stand in for a headless participant.
type (
	NopShooter struct{}
	NopHUD     struct{}
	NopCamera  struct{}
)

func (NopShooter) Shoot(string, string) {}

func (NopHUD) EnablePrimaryButton(func()) {}
func (NopHUD) DisablePrimaryButton()      {}
func (NopHUD) ShowCountdown()             {}
func (NopHUD) OnEquipGun()                {}
func (NopHUD) OnUnequipGun()              {}

func (NopCamera) SwitchToFirstPerson() {}
func (NopCamera) SwitchToThirdPerson() {}

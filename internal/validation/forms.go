package validation

// PetForm is the optional pet section of a client form.
type PetForm struct {
	Name           string `json:"name"`
	Species        string `json:"species"`
	Breed          string `json:"breed"`
	Age            string `json:"age"`
	Weight         string `json:"weight"`
	MedicalHistory string `json:"medicalHistory"`
}

// ClientForm is a clinic client registration. Password is optional and
// validated only when present.
type ClientForm struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Password string   `json:"password,omitempty"`
	Pet      *PetForm `json:"pet,omitempty"`
}

// LoginForm carries sign-in credentials.
type LoginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ValidateClientForm runs every client and pet rule and reports whether all passed.
func (v *Validator) ValidateClientForm(form ClientForm) (bool, []FieldError) {
	c := v.NewCheck()
	c.Name("name", "el nombre del cliente", form.Name)
	c.Email(form.Email)
	c.Phone(form.Phone)
	if form.Password != "" {
		c.Password(form.Password)
	}
	if pet := form.Pet; pet != nil {
		c.PetName(pet.Name)
		if pet.Species != "" {
			c.Species(pet.Species)
		}
		c.Breed(pet.Breed)
		c.Age(pet.Age)
		c.Weight(pet.Weight)
		c.Notes(pet.MedicalHistory)
	}
	return c.Valid(), c.Errors()
}

// ValidateLoginForm checks email and password.
func (v *Validator) ValidateLoginForm(form LoginForm) (bool, []FieldError) {
	c := v.NewCheck()
	c.Email(form.Email)
	c.Password(form.Password)
	return c.Valid(), c.Errors()
}

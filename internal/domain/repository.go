package domain

// RequestRepository описывает требования к хранилищу заявок.
type RequestRepository interface {
	// Get возвращает заявку по идентификатору или ErrRequestNotFound.
	Get(id string) (AdoptionRequest, error)
	// List возвращает все заявки в порядке хранения.
	List() ([]AdoptionRequest, error)
	// ListByRequester возвращает заявки одного заявителя.
	ListByRequester(requesterID string) ([]AdoptionRequest, error)
	// Save создаёт заявку (пустой ID назначается хранилищем) или заменяет существующую
	// с проверкой версии (optimistic locking). Возвращает идентификатор.
	Save(req AdoptionRequest) (string, error)
}

// PetRepository описывает каталог питомцев.
type PetRepository interface {
	Get(id string) (Pet, error)
	List() ([]Pet, error)
	// Save создаёт или полностью заменяет запись питомца.
	Save(pet Pet) (string, error)
	ListAvailable() ([]Pet, error)
	// ListAvailableBySpecies фильтрует доступных питомцев; пустой вид или SpeciesAll отключает фильтр.
	ListAvailableBySpecies(species string) ([]Pet, error)
}

// AppointmentRepository описывает хранилище слотов записи.
type AppointmentRepository interface {
	Get(id string) (Appointment, error)
	List() ([]Appointment, error)
	Save(appointment Appointment) (string, error)
	ListByRequester(requesterID string) ([]Appointment, error)
	ListFree() ([]Appointment, error)
	// Reserve бронирует свободный слот за заявителем и питомцем или возвращает ErrReservationConflict.
	Reserve(id, requesterID, petID string) error
	// Release освобождает слот; повторное освобождение не является ошибкой.
	Release(id string) error
}

// RequesterRepository хранит контактные данные заявителей.
type RequesterRepository interface {
	Get(id string) (Requester, error)
	Save(requester Requester) (string, error)
	FindByEmail(email string) (Requester, error)
}

package seed

import (
	"fmt"

	"github.com/utafrali/productsearch/internal/domain"
)

func sample(name, description, category string, price float64, stock int, brand string, tags ...string) domain.Product {
	p, err := domain.NewProduct(name, description, category, price, stock)
	if err != nil {
		panic(fmt.Sprintf("sample product %q: %v", name, err))
	}
	p.Brand = brand
	if len(tags) > 0 {
		p.Tags = tags
	}
	return p
}

// SampleProducts returns the built-in catalog of 20 Korean sample products
// across seven categories. Each call returns a fresh slice.
func SampleProducts() []domain.Product {
	return []domain.Product{
		// 전자제품
		sample("MacBook Pro 16인치", "Apple M3 Pro 칩, 18GB 통합 메모리, 512GB SSD 저장 장치를 탑재한 고성능 노트북",
			"전자제품", 3990000, 15, "Apple", "노트북", "맥북", "프로", "애플", "고성능"),
		sample("삼성 갤럭시 S24 Ultra", "200MP 카메라와 S펜을 탑재한 플래그십 스마트폰",
			"전자제품", 1698000, 25, "Samsung", "스마트폰", "갤럭시", "안드로이드", "5G"),
		sample("LG 올레드 TV 65인치", "4K UHD 해상도와 돌비 비전을 지원하는 OLED TV",
			"전자제품", 2890000, 8, "LG", "TV", "올레드", "4K", "스마트TV"),
		sample("소니 WH-1000XM5", "업계 최고 수준의 노이즈 캔슬링 무선 헤드폰",
			"전자제품", 449000, 30, "Sony", "헤드폰", "무선", "노이즈캔슬링", "블루투스"),
		sample("아이패드 프로 12.9", "M2 칩과 리퀴드 레티나 XDR 디스플레이를 탑재한 태블릿",
			"전자제품", 1729000, 12, "Apple", "태블릿", "아이패드", "애플", "M2"),

		// 의류
		sample("나이키 에어맥스 270", "편안한 쿠셔닝과 스타일리시한 디자인의 운동화",
			"의류", 179000, 50, "Nike", "운동화", "스니커즈", "에어맥스", "신발"),
		sample("아디다스 울트라부스트 22", "최상의 쿠셔닝과 에너지 리턴을 제공하는 러닝화",
			"의류", 239000, 35, "Adidas", "운동화", "러닝화", "부스트", "신발"),
		sample("유니클로 히트텍 울트라웜", "발열 기능이 뛰어난 겨울 이너웨어",
			"의류", 29900, 100, "Uniqlo", "이너웨어", "발열", "겨울", "히트텍"),

		// 가전제품
		sample("다이슨 V15 무선청소기", "레이저 먼지 감지 기능을 탑재한 무선 청소기",
			"가전제품", 999000, 20, "Dyson", "청소기", "무선", "다이슨", "가전"),
		sample("삼성 비스포크 냉장고", "맞춤형 디자인과 스마트 기능을 갖춘 4도어 냉장고",
			"가전제품", 3290000, 5, "Samsung", "냉장고", "비스포크", "주방가전", "4도어"),
		sample("LG 트롬 세탁기", "AI DD 기술로 섬유를 보호하는 드럼 세탁기",
			"가전제품", 1890000, 10, "LG", "세탁기", "드럼", "트롬", "AI"),

		// 도서
		sample("클린 코드", "로버트 마틴의 애자일 소프트웨어 장인 정신",
			"도서", 33000, 40, "인사이트", "프로그래밍", "소프트웨어", "개발", "책"),
		sample("이펙티브 자바 3판", "자바 프로그래밍 언어 가이드",
			"도서", 36000, 30, "인사이트", "자바", "프로그래밍", "개발", "책"),
		sample("코틀린 인 액션", "코틀린 언어의 핵심을 다룬 실무 지침서",
			"도서", 32000, 25, "에이콘", "코틀린", "프로그래밍", "안드로이드", "책"),

		// 식품
		sample("스타벅스 하우스 블렌드 원두", "균형 잡힌 맛과 향의 미디엄 로스트 커피 원두",
			"식품", 18000, 60, "Starbucks", "커피", "원두", "음료", "스타벅스"),
		sample("허쉬 초콜릿 바", "클래식한 맛의 밀크 초콜릿",
			"식품", 3500, 150, "Hershey's", "초콜릿", "과자", "디저트", "간식"),

		// 가구
		sample("이케아 말름 침대 프레임", "심플한 디자인의 퀸사이즈 침대 프레임",
			"가구", 299000, 15, "IKEA", "침대", "침실가구", "이케아", "프레임"),
		sample("한샘 책상 1200", "넓은 작업 공간을 제공하는 사무용 책상",
			"가구", 189000, 20, "한샘", "책상", "사무가구", "데스크", "한샘"),

		// 스포츠
		sample("윌슨 테니스 라켓", "초보자와 중급자를 위한 올라운드 테니스 라켓",
			"스포츠", 159000, 25, "Wilson", "테니스", "라켓", "운동", "스포츠용품"),
		sample("나이키 축구공 프리미어리그", "프리미어리그 공식 경기구",
			"스포츠", 45000, 40, "Nike", "축구", "축구공", "운동", "나이키"),
	}
}
